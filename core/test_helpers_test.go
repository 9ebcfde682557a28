package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubSender struct {
	mu       sync.Mutex
	requests []WebhookRequest
	response WebhookResponse
	err      error
	onSend   func(req WebhookRequest)
}

func (s *stubSender) Send(_ context.Context, req WebhookRequest) (WebhookResponse, error) {
	if s.onSend != nil {
		s.onSend(req)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.response, s.err
}

func (s *stubSender) calls() []WebhookRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WebhookRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// failingStore wraps a memory store and injects errors per operation.
type failingStore struct {
	*MemoryUnitStore
	getBlockErr error
	casErr      error
}

func (s *failingStore) GetBlock(ctx context.Context, id string) (Block, error) {
	if s.getBlockErr != nil {
		return Block{}, s.getBlockErr
	}
	return s.MemoryUnitStore.GetBlock(ctx, id)
}

func (s *failingStore) CASBlockStatus(ctx context.Context, id string, expected BlockStatus, next BlockStatus, update BlockUpdate) (Block, error) {
	if s.casErr != nil {
		return Block{}, s.casErr
	}
	return s.MemoryUnitStore.CASBlockStatus(ctx, id, expected, next, update)
}

type fixture struct {
	store   *MemoryUnitStore
	work    Work
	webhook Webhook
	block   Block
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := NewMemoryUnitStore()

	webhook, err := store.CreateWebhook(ctx, Webhook{ID: "wh_1", Name: "writer", URL: "https://worker.example.com/hook"})
	if err != nil {
		t.Fatalf("create webhook: %v", err)
	}
	work, err := store.CreateWork(ctx, Work{
		ID:           "work_1",
		Title:        "Recipes",
		PostType:     "post",
		PostStatus:   "draft",
		AuthorID:     7,
		Instructions: "Write about {{keyword}} for {{article_url}} in a {{tone}} voice.",
		Fields: map[string]FieldSpec{
			"slug": {Value: "default-slug", Prompt: "", Type: "string"},
			"tone": {Value: "friendly", Prompt: "Keep it {{tone}}", Type: "string"},
		},
		Image: ImageConfig{
			Enabled:     true,
			Mode:        ImageModeGenerate,
			TemplateID:  "tpl_1",
			TextFields:  map[string]string{"headline": "{{image_title}}"},
			ColorFields: map[string]string{"bg": "#fff"},
			Backgrounds: []string{"bg-1.png"},
		},
		Taxonomies:   map[string]bool{"category": true, "post_tag": false},
		DefaultTerms: map[string][]string{"category": {"food"}},
		WebhookID:    webhook.ID,
	})
	if err != nil {
		t.Fatalf("create work: %v", err)
	}
	block, err := store.CreateBlock(ctx, NewBlock(work, BlockInput{
		ID:                "block_1",
		ArticleURL:        "https://example.com/pasta",
		Keyword:           "pasta",
		FeatureImageTitle: "All about {{title}}",
		Fields: map[string]FieldOverride{
			"slug": {Value: "custom-slug"},
		},
	}, time.Now()))
	if err != nil {
		t.Fatalf("create block: %v", err)
	}
	return fixture{store: store, work: work, webhook: webhook, block: block}
}

func newTestService(t *testing.T, store UnitStore, sender WebhookSender, opts ...Option) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Callback = CallbackConfig{URL: "https://site.example.com/postwork/callback", APIKey: "secret"}
	base := []Option{
		WithUnitStore(store),
		WithWebhookSender(sender),
		WithSitemapProvider(StaticSitemap{"post": `{"urls":["/a"]}`}),
	}
	svc, err := NewService(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func mustBlock(t *testing.T, store UnitStore, id string) Block {
	t.Helper()
	block, err := store.GetBlock(context.Background(), id)
	if err != nil {
		t.Fatalf("get block %s: %v", id, err)
	}
	return block
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

var errStoreDown = errors.New("connection refused")
