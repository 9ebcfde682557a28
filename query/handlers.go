package query

import (
	"context"

	"github.com/goliatone/go-postwork/core"
)

type BlockReader interface {
	GetBlock(ctx context.Context, id string) (core.Block, error)
	ListBlocks(ctx context.Context, filter core.BlockListFilter) (core.BlockPage, error)
}

type GetBlockQuery struct {
	reader BlockReader
}

func NewGetBlockQuery(reader BlockReader) *GetBlockQuery {
	return &GetBlockQuery{reader: reader}
}

func (q *GetBlockQuery) Query(ctx context.Context, msg GetBlockMessage) (core.Block, error) {
	if q == nil || q.reader == nil {
		return core.Block{}, queryDependencyError("query: block reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.Block{}, err
	}
	return q.reader.GetBlock(ctx, msg.BlockID)
}

type ListBlocksQuery struct {
	reader BlockReader
}

func NewListBlocksQuery(reader BlockReader) *ListBlocksQuery {
	return &ListBlocksQuery{reader: reader}
}

func (q *ListBlocksQuery) Query(ctx context.Context, msg ListBlocksMessage) (core.BlockPage, error) {
	if q == nil || q.reader == nil {
		return core.BlockPage{}, queryDependencyError("query: block reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.BlockPage{}, err
	}
	return q.reader.ListBlocks(ctx, msg.Filter)
}
