package sqlstore

import (
	"context"
	"fmt"

	"github.com/goliatone/go-postwork/core"
)

// UnitStore joins the work, webhook and block stores behind core.UnitStore
// and core.AdminStore.
type UnitStore struct {
	works    *WorkStore
	webhooks *WebhookStore
	blocks   *BlockStore
}

func NewUnitStore(works *WorkStore, webhooks *WebhookStore, blocks *BlockStore) (*UnitStore, error) {
	if works == nil || webhooks == nil || blocks == nil {
		return nil, fmt.Errorf("sqlstore: work, webhook and block stores are required")
	}
	return &UnitStore{works: works, webhooks: webhooks, blocks: blocks}, nil
}

func (s *UnitStore) GetWork(ctx context.Context, id string) (core.Work, error) {
	return s.works.Get(ctx, id)
}

func (s *UnitStore) GetWebhook(ctx context.Context, id string) (core.Webhook, error) {
	return s.webhooks.Get(ctx, id)
}

func (s *UnitStore) GetBlock(ctx context.Context, id string) (core.Block, error) {
	return s.blocks.Get(ctx, id)
}

func (s *UnitStore) CASBlockStatus(
	ctx context.Context,
	id string,
	expected core.BlockStatus,
	next core.BlockStatus,
	update core.BlockUpdate,
) (core.Block, error) {
	return s.blocks.CompareAndSetStatus(ctx, id, expected, next, update)
}

func (s *UnitStore) ListBlocksByWork(ctx context.Context, workID string) ([]core.Block, error) {
	return s.blocks.ListByWork(ctx, workID)
}

func (s *UnitStore) ListBlocks(ctx context.Context, filter core.BlockListFilter) (core.BlockPage, error) {
	return s.blocks.List(ctx, filter)
}

func (s *UnitStore) CreateWork(ctx context.Context, work core.Work) (core.Work, error) {
	return s.works.Create(ctx, work)
}

func (s *UnitStore) CreateWebhook(ctx context.Context, webhook core.Webhook) (core.Webhook, error) {
	return s.webhooks.Create(ctx, webhook)
}

func (s *UnitStore) CreateBlock(ctx context.Context, block core.Block) (core.Block, error) {
	return s.blocks.Create(ctx, block)
}

func (s *UnitStore) DeleteWork(ctx context.Context, id string) error {
	return s.works.Delete(ctx, id)
}
