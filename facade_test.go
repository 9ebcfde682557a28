package postwork

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"
	postworkcommand "github.com/goliatone/go-postwork/command"
	"github.com/goliatone/go-postwork/core"
	postworkquery "github.com/goliatone/go-postwork/query"
	"github.com/goliatone/go-postwork/transport"
)

type recordingSender struct {
	mu       sync.Mutex
	requests []core.WebhookRequest
}

func (s *recordingSender) Send(_ context.Context, req core.WebhookRequest) (core.WebhookResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return core.WebhookResponse{StatusCode: http.StatusAccepted}, nil
}

func seedStore(t *testing.T) *core.MemoryUnitStore {
	t.Helper()
	ctx := context.Background()
	store := core.NewMemoryUnitStore()
	if _, err := store.CreateWebhook(ctx, Webhook{ID: "wh_1", Name: "writer", URL: "https://worker.example.com/hook"}); err != nil {
		t.Fatalf("create webhook: %v", err)
	}
	work, err := store.CreateWork(ctx, Work{ID: "work_1", Title: "Recipes", PostType: "post", WebhookID: "wh_1"})
	if err != nil {
		t.Fatalf("create work: %v", err)
	}
	if _, err := store.CreateBlock(ctx, core.NewBlock(work, BlockInput{ID: "block_1", Keyword: "pasta"}, time.Now())); err != nil {
		t.Fatalf("create block: %v", err)
	}
	return store
}

func TestNewService_DefaultsToWebhookClient(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, ok := svc.Dependencies().WebhookSender.(*transport.WebhookClient); !ok {
		t.Fatalf("expected default webhook client, got %T", svc.Dependencies().WebhookSender)
	}
}

func TestNewService_ExplicitSenderWins(t *testing.T) {
	sender := &recordingSender{}
	svc, err := NewService(Config{}, WithWebhookSender(sender))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.Dependencies().WebhookSender != sender {
		t.Fatalf("expected explicit sender to be kept")
	}
}

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	svc, err := NewService(Config{}, WithWebhookSender(&recordingSender{}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.DispatchBlock == nil || commands.EnqueueDispatch == nil || commands.IngestCallback == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.GetBlock == nil || queries.ListBlocks == nil {
		t.Fatalf("expected query handlers to be wired")
	}
	if facade.Service() == nil {
		t.Fatalf("expected service to be exposed")
	}
}

func TestFacade_DispatchThenCallbackRoundTrip(t *testing.T) {
	store := seedStore(t)
	sender := &recordingSender{}
	cfg := DefaultConfig()
	cfg.Callback = CallbackConfig{URL: "https://site.example.com/postwork/callback", APIKey: "secret"}
	svc, err := NewService(cfg, WithUnitStore(store), WithWebhookSender(sender))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	collector := gocmd.NewResult[core.DispatchResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := facade.Commands().DispatchBlock.Execute(ctx, postworkcommand.DispatchBlockMessage{
		Request: DispatchRequest{WorkID: "work_1", BlockID: "block_1"},
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	dispatched, ok := collector.Load()
	if !ok || dispatched.Block.Status != core.BlockStatusProcessing {
		t.Fatalf("expected processing block in result, got %#v", dispatched)
	}
	if len(sender.requests) != 1 || sender.requests[0].URL != "https://worker.example.com/hook" {
		t.Fatalf("expected one post to the work webhook, got %#v", sender.requests)
	}

	if err := facade.Commands().IngestCallback.Execute(context.Background(), postworkcommand.IngestCallbackMessage{
		BlockID:  "block_1",
		Callback: CallbackResult{BlockID: "block_1", Status: core.CallbackStatusCompleted, PostID: 42},
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	block, err := facade.Queries().GetBlock.Query(context.Background(), postworkquery.GetBlockMessage{BlockID: "block_1"})
	if err != nil {
		t.Fatalf("get block: %v", err)
	}
	if block.Status != core.BlockStatusCompleted || block.PostID != 42 {
		t.Fatalf("expected completed block with post id, got %#v", block)
	}

	page, err := facade.Queries().ListBlocks.Query(context.Background(), postworkquery.ListBlocksMessage{
		Filter: BlockListFilter{WorkID: "work_1", Status: core.BlockStatusCompleted},
	})
	if err != nil {
		t.Fatalf("list blocks: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != "block_1" {
		t.Fatalf("unexpected page %#v", page)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

func TestFacade_NilReceiverReturnsZeroValues(t *testing.T) {
	var facade *Facade
	if facade.Commands().DispatchBlock != nil || facade.Queries().GetBlock != nil || facade.Service() != nil {
		t.Fatalf("expected zero values from nil facade")
	}
}
