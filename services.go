package postwork

import (
	"github.com/goliatone/go-postwork/core"
	"github.com/goliatone/go-postwork/transport"
)

type Config = core.Config
type DispatchConfig = core.DispatchConfig
type CallbackConfig = core.CallbackConfig
type RunnerConfig = core.RunnerConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type UnitStore = core.UnitStore
type AdminStore = core.AdminStore
type SitemapProvider = core.SitemapProvider
type WebhookSender = core.WebhookSender
type JobEnqueuer = core.JobEnqueuer

type Work = core.Work
type Webhook = core.Webhook
type Block = core.Block
type BlockStatus = core.BlockStatus
type BlockInput = core.BlockInput
type BlockListFilter = core.BlockListFilter
type BlockPage = core.BlockPage
type ImageConfig = core.ImageConfig
type FieldSpec = core.FieldSpec
type FieldOverride = core.FieldOverride

type DispatchRequest = core.DispatchRequest
type DispatchResult = core.DispatchResult
type EnqueueResult = core.EnqueueResult
type CallbackResult = core.CallbackResult
type IngestResult = core.IngestResult

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithUnitStore         = core.WithUnitStore
	WithSitemapProvider   = core.WithSitemapProvider
	WithWebhookSender     = core.WithWebhookSender
	WithSenderFactory     = core.WithSenderFactory
	WithJobEnqueuer       = core.WithJobEnqueuer
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewService builds the postwork service with the TLS-verifying webhook
// client as its default sender. WithWebhookSender or WithSenderFactory
// in opts take precedence.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	defaults := []Option{core.WithSenderFactory(transport.SenderFactory())}
	return core.NewService(cfg, append(defaults, opts...)...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}
