package command

import (
	"strings"

	"github.com/goliatone/go-postwork/core"
)

const (
	TypeDispatchBlock   = "postwork.command.block.dispatch"
	TypeEnqueueDispatch = "postwork.command.block.enqueue_dispatch"
	TypeIngestCallback  = "postwork.command.callback.ingest"
)

type DispatchBlockMessage struct {
	Request core.DispatchRequest
}

func (DispatchBlockMessage) Type() string { return TypeDispatchBlock }

func (m DispatchBlockMessage) Validate() error {
	return validateDispatchRequest(m.Request)
}

type EnqueueDispatchMessage struct {
	Request core.DispatchRequest
}

func (EnqueueDispatchMessage) Type() string { return TypeEnqueueDispatch }

func (m EnqueueDispatchMessage) Validate() error {
	return validateDispatchRequest(m.Request)
}

type IngestCallbackMessage struct {
	BlockID  string
	Callback core.CallbackResult
}

func (IngestCallbackMessage) Type() string { return TypeIngestCallback }

func (m IngestCallbackMessage) Validate() error {
	if strings.TrimSpace(m.BlockID) == "" && strings.TrimSpace(m.Callback.BlockID) == "" {
		return commandValidationError("block_id", "required")
	}
	if strings.TrimSpace(string(m.Callback.Status)) == "" {
		return commandValidationError("status", "required")
	}
	return nil
}

func validateDispatchRequest(req core.DispatchRequest) error {
	if strings.TrimSpace(req.WorkID) == "" {
		return commandValidationError("work_id", "required")
	}
	if strings.TrimSpace(req.BlockID) == "" {
		return commandValidationError("block_id", "required")
	}
	return nil
}
