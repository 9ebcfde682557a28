package query

import (
	"strings"

	"github.com/goliatone/go-postwork/core"
)

const (
	TypeGetBlock   = "postwork.query.block.get"
	TypeListBlocks = "postwork.query.block.list"
)

type GetBlockMessage struct {
	BlockID string
}

func (GetBlockMessage) Type() string { return TypeGetBlock }

func (m GetBlockMessage) Validate() error {
	if strings.TrimSpace(m.BlockID) == "" {
		return queryValidationError("block_id", "required")
	}
	return nil
}

type ListBlocksMessage struct {
	Filter core.BlockListFilter
}

func (ListBlocksMessage) Type() string { return TypeListBlocks }

func (m ListBlocksMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "must be >= 0")
	}
	if status := core.NormalizeBlockStatus(string(m.Filter.Status)); status != "" && !status.Valid() {
		return queryValidationError("status", "must be one of pending, processing, completed, failed")
	}
	return nil
}
