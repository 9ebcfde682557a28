package query

import (
	"context"
	"testing"

	"github.com/goliatone/go-postwork/core"
)

type stubBlockReader struct {
	getFn  func(ctx context.Context, id string) (core.Block, error)
	listFn func(ctx context.Context, filter core.BlockListFilter) (core.BlockPage, error)
}

func (s stubBlockReader) GetBlock(ctx context.Context, id string) (core.Block, error) {
	return s.getFn(ctx, id)
}

func (s stubBlockReader) ListBlocks(ctx context.Context, filter core.BlockListFilter) (core.BlockPage, error) {
	return s.listFn(ctx, filter)
}

func TestGetBlockQuery_QueryDelegates(t *testing.T) {
	called := false
	reader := stubBlockReader{
		getFn: func(_ context.Context, id string) (core.Block, error) {
			called = true
			if id != "block_1" {
				t.Fatalf("unexpected block id %q", id)
			}
			return core.Block{ID: id, Status: core.BlockStatusCompleted, PostID: 11}, nil
		},
	}
	block, err := NewGetBlockQuery(reader).Query(context.Background(), GetBlockMessage{BlockID: "block_1"})
	if err != nil {
		t.Fatalf("query block: %v", err)
	}
	if !called || block.PostID != 11 {
		t.Fatalf("unexpected block %#v called=%v", block, called)
	}
}

func TestListBlocksQuery_QueryDelegates(t *testing.T) {
	reader := stubBlockReader{
		listFn: func(_ context.Context, filter core.BlockListFilter) (core.BlockPage, error) {
			if filter.WorkID != "work_1" || filter.Status != core.BlockStatusFailed || filter.PerPage != 10 {
				t.Fatalf("unexpected filter %#v", filter)
			}
			return core.BlockPage{
				Items:   []core.Block{{ID: "b1", Status: core.BlockStatusFailed}},
				Page:    1,
				PerPage: 10,
				Total:   1,
			}, nil
		},
	}
	page, err := NewListBlocksQuery(reader).Query(context.Background(), ListBlocksMessage{Filter: core.BlockListFilter{
		WorkID:  "work_1",
		Status:  core.BlockStatusFailed,
		PerPage: 10,
	}})
	if err != nil {
		t.Fatalf("list blocks: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != "b1" {
		t.Fatalf("unexpected page %#v", page)
	}
}

func TestListBlocksQuery_AgainstMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := core.NewMemoryUnitStore()
	work, err := store.CreateWork(ctx, core.Work{ID: "work_1", Title: "Recipes"})
	if err != nil {
		t.Fatalf("create work: %v", err)
	}
	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.CreateBlock(ctx, core.NewBlock(work, core.BlockInput{ID: id}, work.CreatedAt)); err != nil {
			t.Fatalf("create block: %v", err)
		}
	}
	svc, err := core.NewService(core.Config{}, core.WithUnitStore(store))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	page, err := NewListBlocksQuery(svc).Query(ctx, ListBlocksMessage{Filter: core.BlockListFilter{WorkID: "work_1", PerPage: 2}})
	if err != nil {
		t.Fatalf("list blocks: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || !page.HasNext {
		t.Fatalf("unexpected page %#v", page)
	}
	if page.Items[0].ID != "a" || page.Items[1].ID != "b" {
		t.Fatalf("expected id tie breaker ordering, got %s %s", page.Items[0].ID, page.Items[1].ID)
	}
}
