package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestDispatch_SuccessMovesBlockToProcessing(t *testing.T) {
	fx := newFixture(t)
	sender := &stubSender{response: WebhookResponse{StatusCode: 202, Body: []byte(`{"queued":true}`)}}
	svc := newTestService(t, fx.store, sender)

	result, err := svc.Dispatch(context.Background(), DispatchRequest{WorkID: fx.work.ID, BlockID: fx.block.ID})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Block.Status != BlockStatusProcessing {
		t.Fatalf("expected processing, got %q", result.Block.Status)
	}
	if result.WebhookID != fx.webhook.ID {
		t.Fatalf("expected work default webhook, got %q", result.WebhookID)
	}
	stored := mustBlock(t, fx.store, fx.block.ID)
	if stored.Status != BlockStatusProcessing || stored.Attempts != 1 || stored.DispatchedAt == nil {
		t.Fatalf("unexpected stored block %#v", stored)
	}

	calls := sender.calls()
	if len(calls) != 1 {
		t.Fatalf("expected one webhook call, got %d", len(calls))
	}
	if calls[0].URL != fx.webhook.URL {
		t.Fatalf("expected webhook url, got %q", calls[0].URL)
	}
	if calls[0].Headers.Get("Content-Type") != "application/json" {
		t.Fatalf("expected json content type")
	}
	var body map[string]any
	if err := json.Unmarshal(calls[0].Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["callback_url"] != "https://site.example.com/postwork/callback" || body["api_key"] != "secret" {
		t.Fatalf("expected callback settings in body, got %v", body)
	}
	fields := body["post_fields"].(map[string]any)
	if fields["slug"].(map[string]any)["value"] != "custom-slug" {
		t.Fatalf("expected override slug in body, got %v", fields["slug"])
	}
}

func TestDispatch_HTTP500MarksBlockFailed(t *testing.T) {
	fx := newFixture(t)
	sender := &stubSender{response: WebhookResponse{StatusCode: 500, Body: []byte("boom")}}
	svc := newTestService(t, fx.store, sender)

	result, err := svc.Dispatch(context.Background(), DispatchRequest{WorkID: fx.work.ID, BlockID: fx.block.ID})
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if result.StatusCode != 500 {
		t.Fatalf("expected status code on result, got %d", result.StatusCode)
	}
	stored := mustBlock(t, fx.store, fx.block.ID)
	if stored.Status != BlockStatusFailed {
		t.Fatalf("expected failed, got %q", stored.Status)
	}
	if !strings.Contains(stored.ErrorMessage, "500") {
		t.Fatalf("expected status code in error message, got %q", stored.ErrorMessage)
	}
	if !strings.HasSuffix(stored.ErrorMessage, ".") {
		t.Fatalf("expected a full sentence, got %q", stored.ErrorMessage)
	}
	if stored.PostID != 0 {
		t.Fatalf("expected no post id, got %d", stored.PostID)
	}
}

func TestDispatch_TransportErrorMarksBlockFailed(t *testing.T) {
	fx := newFixture(t)
	sender := &stubSender{err: errors.New("dial tcp: connection refused")}
	svc := newTestService(t, fx.store, sender)

	_, err := svc.Dispatch(context.Background(), DispatchRequest{WorkID: fx.work.ID, BlockID: fx.block.ID})
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	stored := mustBlock(t, fx.store, fx.block.ID)
	if stored.Status != BlockStatusFailed {
		t.Fatalf("expected failed, got %q", stored.Status)
	}
	if !strings.Contains(stored.ErrorMessage, "connection refused") {
		t.Fatalf("expected transport diagnostic, got %q", stored.ErrorMessage)
	}
}

func TestDispatch_RedispatchFromFailedClearsError(t *testing.T) {
	fx := newFixture(t)
	sender := &stubSender{response: WebhookResponse{StatusCode: 503}}
	svc := newTestService(t, fx.store, sender)
	ctx := context.Background()
	req := DispatchRequest{WorkID: fx.work.ID, BlockID: fx.block.ID}

	if _, err := svc.Dispatch(ctx, req); err == nil {
		t.Fatalf("expected first dispatch to fail")
	}
	sender.response = WebhookResponse{StatusCode: 200}
	result, err := svc.Dispatch(ctx, req)
	if err != nil {
		t.Fatalf("redispatch: %v", err)
	}
	if result.Block.Status != BlockStatusProcessing || result.Block.ErrorMessage != "" {
		t.Fatalf("expected clean processing block, got %#v", result.Block)
	}
	if result.Block.Attempts != 2 {
		t.Fatalf("expected two attempts, got %d", result.Block.Attempts)
	}
}

func TestDispatch_LookupFailuresDoNotMutate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	orphanWork, err := fx.store.CreateWork(ctx, Work{ID: "work_orphan"})
	if err != nil {
		t.Fatalf("create work: %v", err)
	}
	orphanBlock, err := fx.store.CreateBlock(ctx, NewBlock(orphanWork, BlockInput{ID: "block_orphan"}, fx.block.CreatedAt))
	if err != nil {
		t.Fatalf("create block: %v", err)
	}
	sender := &stubSender{response: WebhookResponse{StatusCode: 200}}
	svc := newTestService(t, fx.store, sender)

	cases := []struct {
		name    string
		req     DispatchRequest
		blockID string
		check   func(error) bool
	}{
		{name: "missing work", req: DispatchRequest{WorkID: "nope", BlockID: fx.block.ID}, blockID: fx.block.ID, check: IsNotFound},
		{name: "missing block", req: DispatchRequest{WorkID: fx.work.ID, BlockID: "nope"}, blockID: fx.block.ID, check: IsNotFound},
		{name: "foreign block", req: DispatchRequest{WorkID: fx.work.ID, BlockID: orphanBlock.ID}, blockID: orphanBlock.ID, check: IsNotFound},
		{name: "missing webhook", req: DispatchRequest{WorkID: fx.work.ID, BlockID: fx.block.ID, WebhookID: "nope"}, blockID: fx.block.ID, check: IsNotFound},
		{name: "no webhook at all", req: DispatchRequest{WorkID: orphanWork.ID, BlockID: orphanBlock.ID}, blockID: orphanBlock.ID, check: IsValidation},
		{name: "empty ids", req: DispatchRequest{}, blockID: fx.block.ID, check: IsValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := mustBlock(t, fx.store, tc.blockID)
			_, err := svc.Dispatch(ctx, tc.req)
			if !tc.check(err) {
				t.Fatalf("unexpected error class: %v", err)
			}
			after := mustBlock(t, fx.store, tc.blockID)
			if after.Status != before.Status || after.Attempts != before.Attempts || !after.UpdatedAt.Equal(before.UpdatedAt) {
				t.Fatalf("expected block untouched, before=%#v after=%#v", before, after)
			}
		})
	}
	if calls := sender.calls(); len(calls) != 0 {
		t.Fatalf("expected no webhook calls, got %d", len(calls))
	}
}

func TestDispatch_RejectsInFlightAndCompletedBlocks(t *testing.T) {
	for _, status := range []BlockStatus{BlockStatusProcessing, BlockStatusCompleted} {
		t.Run(string(status), func(t *testing.T) {
			fx := newFixture(t)
			ctx := context.Background()
			if _, err := fx.store.CASBlockStatus(ctx, fx.block.ID, BlockStatusPending, BlockStatusProcessing, BlockUpdate{}); err != nil {
				t.Fatalf("seed processing: %v", err)
			}
			if status == BlockStatusCompleted {
				postID := int64(9)
				if _, err := fx.store.CASBlockStatus(ctx, fx.block.ID, BlockStatusProcessing, BlockStatusCompleted, BlockUpdate{PostID: &postID}); err != nil {
					t.Fatalf("seed completed: %v", err)
				}
			}
			sender := &stubSender{response: WebhookResponse{StatusCode: 200}}
			svc := newTestService(t, fx.store, sender)

			_, err := svc.Dispatch(ctx, DispatchRequest{WorkID: fx.work.ID, BlockID: fx.block.ID})
			if !IsConflict(err) {
				t.Fatalf("expected conflict, got %v", err)
			}
			if len(sender.calls()) != 0 {
				t.Fatalf("expected no webhook call")
			}
			if got := mustBlock(t, fx.store, fx.block.ID).Status; got != status {
				t.Fatalf("expected status %q preserved, got %q", status, got)
			}
		})
	}
}

func TestDispatch_ConcurrentCallsYieldOneConflict(t *testing.T) {
	fx := newFixture(t)
	start := make(chan struct{})
	sender := &stubSender{response: WebhookResponse{StatusCode: 200}}
	svc := newTestService(t, fx.store, sender)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			<-start
			_, errs[index] = svc.Dispatch(context.Background(), DispatchRequest{WorkID: fx.work.ID, BlockID: fx.block.ID})
		}(i)
	}
	close(start)
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case IsConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("expected one success and one conflict, got %d/%d", successes, conflicts)
	}
	if calls := sender.calls(); len(calls) != 1 {
		t.Fatalf("expected exactly one webhook call, got %d", len(calls))
	}
}

func TestDispatch_CallerCancellationDoesNotAbortSend(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	var sendCtxErr error
	sender := &stubSender{response: WebhookResponse{StatusCode: 200}}
	svc := newTestService(t, fx.store, sender)
	sender.onSend = func(WebhookRequest) {
		cancel()
	}
	svc.sender = senderFunc(func(sendCtx context.Context, req WebhookRequest) (WebhookResponse, error) {
		resp, err := sender.Send(sendCtx, req)
		sendCtxErr = sendCtx.Err()
		return resp, err
	})

	if _, err := svc.Dispatch(ctx, DispatchRequest{WorkID: fx.work.ID, BlockID: fx.block.ID}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if sendCtxErr != nil {
		t.Fatalf("expected send context to ignore caller cancellation, got %v", sendCtxErr)
	}
}

func TestDispatch_StoreOutageIsFatal(t *testing.T) {
	fx := newFixture(t)
	store := &failingStore{MemoryUnitStore: fx.store, casErr: errStoreDown}
	sender := &stubSender{response: WebhookResponse{StatusCode: 200}}
	svc := newTestService(t, store, sender)

	_, err := svc.Dispatch(context.Background(), DispatchRequest{WorkID: fx.work.ID, BlockID: fx.block.ID})
	if !IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if len(sender.calls()) != 0 {
		t.Fatalf("expected no webhook call when the processing write fails")
	}
}

type senderFunc func(ctx context.Context, req WebhookRequest) (WebhookResponse, error)

func (f senderFunc) Send(ctx context.Context, req WebhookRequest) (WebhookResponse, error) {
	return f(ctx, req)
}
