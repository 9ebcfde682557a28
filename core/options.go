package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	unitStore         UnitStore
	sitemapProvider   SitemapProvider
	sender            WebhookSender
	senderFactory     SenderFactory
	jobEnqueuer       JobEnqueuer
	now               func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

// WithRepositoryFactory accepts a RepositoryStoreFactory or a StoreProvider.
func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithUnitStore(store UnitStore) Option {
	return func(b *serviceBuilder) {
		b.unitStore = store
	}
}

func WithSitemapProvider(provider SitemapProvider) Option {
	return func(b *serviceBuilder) {
		b.sitemapProvider = provider
	}
}

// WithWebhookSender pins the outbound sender. It takes precedence over
// WithSenderFactory.
func WithWebhookSender(sender WebhookSender) Option {
	return func(b *serviceBuilder) {
		b.sender = sender
	}
}

// WithSenderFactory builds the outbound sender from the resolved dispatch
// config.
func WithSenderFactory(factory SenderFactory) Option {
	return func(b *serviceBuilder) {
		b.senderFactory = factory
	}
}

func WithJobEnqueuer(enqueuer JobEnqueuer) Option {
	return func(b *serviceBuilder) {
		b.jobEnqueuer = enqueuer
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("postwork", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return postworkErrorMapper(err)
}

// MapConfigLoader serves a fixed raw config map, mainly for tests and
// embedded setups.
type MapConfigLoader map[string]any

func (l MapConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	out := make(map[string]any, len(l))
	for key, value := range l {
		out[key] = value
	}
	return out, nil
}

// CfgxConfigProvider decodes a raw map into Config through cfgx, applying
// defaults first and Config.Validate last.
type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	var loader RawConfigLoader = MapConfigLoader(nil)
	if p.Loader != nil {
		loader = p.Loader
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	return buildConfig(raw, defaults)
}

func buildConfig(raw map[string]any, defaults Config) (Config, error) {
	return cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
}

// GoOptionsResolver merges defaults, loaded config and runtime config as
// go-options layers of increasing priority. Zero values in the loaded and
// runtime layers do not override lower layers.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(opts.NewScope("defaults", 0), configToLayerMap(defaults, true), opts.WithSnapshotID[map[string]any]("defaults")),
		opts.NewLayer(opts.NewScope("config", 10), configToLayerMap(loaded, false), opts.WithSnapshotID[map[string]any]("config")),
		opts.NewLayer(opts.NewScope("runtime", 20), configToLayerMap(runtime, false), opts.WithSnapshotID[map[string]any]("runtime")),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	return buildConfig(merged.Value, defaults)
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	dispatch := map[string]any{}
	if includeZero || cfg.Dispatch.Timeout > 0 {
		dispatch["timeout"] = cfg.Dispatch.Timeout
	}
	if includeZero || cfg.Dispatch.InsecureSkipVerify {
		dispatch["insecure_skip_verify"] = cfg.Dispatch.InsecureSkipVerify
	}
	if includeZero || cfg.Dispatch.MaxResponseBodyBytes > 0 {
		dispatch["max_response_body_bytes"] = cfg.Dispatch.MaxResponseBodyBytes
	}
	if includeZero || strings.TrimSpace(cfg.Dispatch.UserAgent) != "" {
		dispatch["user_agent"] = cfg.Dispatch.UserAgent
	}
	if len(dispatch) > 0 {
		layer["dispatch"] = dispatch
	}

	callback := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Callback.URL) != "" {
		callback["url"] = cfg.Callback.URL
	}
	if includeZero || strings.TrimSpace(cfg.Callback.APIKey) != "" {
		callback["api_key"] = cfg.Callback.APIKey
	}
	if len(callback) > 0 {
		layer["callback"] = callback
	}

	runner := map[string]any{}
	if includeZero || cfg.Runner.Workers > 0 {
		runner["workers"] = cfg.Runner.Workers
	}
	if includeZero || cfg.Runner.PollInterval > 0 {
		runner["poll_interval"] = cfg.Runner.PollInterval
	}
	if len(runner) > 0 {
		layer["runner"] = runner
	}
	return layer
}
