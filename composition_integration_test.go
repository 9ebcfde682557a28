package postwork_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	postwork "github.com/goliatone/go-postwork"
	"github.com/goliatone/go-postwork/core"
	"github.com/goliatone/go-postwork/inbound"
	postworkmigrations "github.com/goliatone/go-postwork/migrations"
	sqlstore "github.com/goliatone/go-postwork/store/sql"
	"github.com/goliatone/go-postwork/webhooks"
)

type workerInbox struct {
	mu       sync.Mutex
	payloads []core.Payload
}

func (w *workerInbox) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	var payload core.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	w.mu.Lock()
	w.payloads = append(w.payloads, payload)
	w.mu.Unlock()
	rw.WriteHeader(http.StatusAccepted)
}

func (w *workerInbox) last(t *testing.T) core.Payload {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.payloads) == 0 {
		t.Fatalf("worker received no payloads")
	}
	return w.payloads[len(w.payloads)-1]
}

func TestComposition_SQLiteDispatchAndSignedCallback(t *testing.T) {
	ctx := context.Background()
	factory := newSQLiteFactory(t)

	inbox := &workerInbox{}
	worker := httptest.NewServer(inbox)
	t.Cleanup(worker.Close)

	mux := http.NewServeMux()
	site := httptest.NewServer(mux)
	t.Cleanup(site.Close)

	admin := factory.AdminStore()
	if _, err := admin.CreateWebhook(ctx, core.Webhook{ID: "wh_1", Name: "writer", URL: worker.URL}); err != nil {
		t.Fatalf("create webhook: %v", err)
	}
	work, err := admin.CreateWork(ctx, core.Work{
		ID:           "work_1",
		Title:        "Recipes",
		PostType:     "post",
		Instructions: "Write about {{keyword}}",
		WebhookID:    "wh_1",
	})
	if err != nil {
		t.Fatalf("create work: %v", err)
	}
	if _, err := admin.CreateBlock(ctx, core.NewBlock(work, core.BlockInput{ID: "block_1", Keyword: "pasta"}, time.Now())); err != nil {
		t.Fatalf("create block: %v", err)
	}

	cfg := postwork.DefaultConfig()
	cfg.Callback = postwork.CallbackConfig{URL: site.URL + "/postwork/callback", APIKey: "secret"}
	svc, err := postwork.NewService(cfg, postwork.WithRepositoryFactory(factory))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler := inbound.NewHandler(svc, webhooks.NewProcessor(webhooks.NewAPIKeyVerifier("secret"), svc), "/postwork")
	if err := handler.Register(mux); err != nil {
		t.Fatalf("register routes: %v", err)
	}

	res, err := http.Post(site.URL+"/postwork/works/work_1/blocks/block_1/dispatch", "application/json", nil)
	if err != nil {
		t.Fatalf("dispatch request: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected dispatch 200, got %d", res.StatusCode)
	}

	payload := inbox.last(t)
	if payload.BlockID != "block_1" || payload.Instructions != "Write about pasta" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if payload.CallbackURL != cfg.Callback.URL || payload.APIKey != "secret" {
		t.Fatalf("expected callback coordinates in payload, got %q %q", payload.CallbackURL, payload.APIKey)
	}

	processing, err := svc.GetBlock(ctx, "block_1")
	if err != nil {
		t.Fatalf("get block: %v", err)
	}
	if processing.Status != core.BlockStatusProcessing || processing.Attempts != 1 {
		t.Fatalf("expected processing block after dispatch, got %#v", processing)
	}

	callback := []byte(fmt.Sprintf(`{"block_id":%q,"status":"completed","post_id":314}`, payload.BlockID))
	status := postCallback(t, payload.CallbackURL, payload.APIKey, callback)
	if status != http.StatusOK {
		t.Fatalf("expected callback 200, got %d", status)
	}

	completed, err := svc.GetBlock(ctx, "block_1")
	if err != nil {
		t.Fatalf("get block: %v", err)
	}
	if completed.Status != core.BlockStatusCompleted || completed.PostID != 314 || completed.CompletedAt == nil {
		t.Fatalf("expected completed block, got %#v", completed)
	}

	if status := postCallback(t, payload.CallbackURL, "wrong", callback); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad key, got %d", status)
	}
}

func postCallback(t *testing.T, url string, apiKey string, body []byte) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new callback request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhooks.HeaderAPIKey, apiKey)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("callback request: %v", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	return res.StatusCode
}

func newSQLiteFactory(t *testing.T) *sqlstore.RepositoryFactory {
	t.Helper()
	dsn := fmt.Sprintf("file:postwork-composition-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	client, err := sqlstore.Open(sqlstore.ConnectionConfig{Driver: "sqlite", DSN: dsn, PingTimeout: time.Second})
	if err != nil {
		t.Fatalf("open sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	_, err = postworkmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != postworkmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, postworkmigrations.WithDialects(postworkmigrations.DialectSQLite))
	if err != nil {
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	return factory
}
