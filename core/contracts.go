package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// UnitStore is the persistence boundary of the dispatch state machine. Every
// status change goes through CASBlockStatus.
type UnitStore interface {
	GetWork(ctx context.Context, id string) (Work, error)
	GetBlock(ctx context.Context, id string) (Block, error)
	GetWebhook(ctx context.Context, id string) (Webhook, error)
	// CASBlockStatus moves a block from expected to next and applies update in
	// the same write. It returns ErrStatusConflict when the stored status is
	// not expected.
	CASBlockStatus(ctx context.Context, id string, expected BlockStatus, next BlockStatus, update BlockUpdate) (Block, error)
	ListBlocksByWork(ctx context.Context, workID string) ([]Block, error)
	ListBlocks(ctx context.Context, filter BlockListFilter) (BlockPage, error)
}

// AdminStore is the record management surface used by importers and admin
// collaborators.
type AdminStore interface {
	CreateWork(ctx context.Context, work Work) (Work, error)
	CreateWebhook(ctx context.Context, webhook Webhook) (Webhook, error)
	CreateBlock(ctx context.Context, block Block) (Block, error)
	DeleteWork(ctx context.Context, id string) error
}

type StoreProvider interface {
	UnitStore() UnitStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type SitemapProvider interface {
	GetSitemapJSON(ctx context.Context, postType string) (string, error)
}

// SitemapFunc adapts a function to SitemapProvider.
type SitemapFunc func(ctx context.Context, postType string) (string, error)

func (f SitemapFunc) GetSitemapJSON(ctx context.Context, postType string) (string, error) {
	if f == nil {
		return "", nil
	}
	return f(ctx, postType)
}

// StaticSitemap serves a fixed sitemap document per post type.
type StaticSitemap map[string]string

func (s StaticSitemap) GetSitemapJSON(_ context.Context, postType string) (string, error) {
	return s[postType], nil
}

type WebhookRequest struct {
	URL     string
	Body    []byte
	Headers http.Header
}

type WebhookResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// WebhookSender performs exactly one outbound delivery. Non-2xx statuses are
// returned as responses, not errors.
type WebhookSender interface {
	Send(ctx context.Context, req WebhookRequest) (WebhookResponse, error)
}

type SenderFactory func(cfg DispatchConfig) WebhookSender

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type DispatchRequest struct {
	WorkID    string
	BlockID   string
	WebhookID string
}

type DispatchResult struct {
	Block        Block
	WebhookID    string
	StatusCode   int
	ResponseBody []byte
}

type EnqueueResult struct {
	BlockID        string
	JobID          string
	IdempotencyKey string
}

type CallbackStatus string

const (
	CallbackStatusCompleted CallbackStatus = "completed"
	CallbackStatusFailed    CallbackStatus = "failed"
)

type CallbackResult struct {
	BlockID      string         `json:"block_id"`
	Status       CallbackStatus `json:"status"`
	PostID       int64          `json:"post_id,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

type IngestResult struct {
	Block   Block
	Applied bool
}

// PostworkService is the operation surface consumed by command, query and
// inbound adapters.
type PostworkService interface {
	Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error)
	EnqueueDispatch(ctx context.Context, req DispatchRequest) (EnqueueResult, error)
	Ingest(ctx context.Context, blockID string, result CallbackResult) (IngestResult, error)
	GetBlock(ctx context.Context, id string) (Block, error)
	ListBlocks(ctx context.Context, filter BlockListFilter) (BlockPage, error)
}
