package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-postwork/core"
)

var (
	_ gocmd.Querier[GetBlockMessage, core.Block]       = (*GetBlockQuery)(nil)
	_ gocmd.Querier[ListBlocksMessage, core.BlockPage] = (*ListBlocksQuery)(nil)
)
