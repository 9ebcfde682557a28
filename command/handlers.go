package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-postwork/core"
)

type DispatchService interface {
	Dispatch(ctx context.Context, req core.DispatchRequest) (core.DispatchResult, error)
	EnqueueDispatch(ctx context.Context, req core.DispatchRequest) (core.EnqueueResult, error)
}

type CallbackService interface {
	Ingest(ctx context.Context, blockID string, callback core.CallbackResult) (core.IngestResult, error)
}

type DispatchBlockCommand struct {
	service DispatchService
}

func NewDispatchBlockCommand(service DispatchService) *DispatchBlockCommand {
	return &DispatchBlockCommand{service: service}
}

// Execute dispatches the block. A failed delivery still stores the result,
// so callers can read the recorded status code alongside the error.
func (c *DispatchBlockCommand) Execute(ctx context.Context, msg DispatchBlockMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.Dispatch(ctx, msg.Request)
	if out.Block.ID != "" {
		storeResult(ctx, out)
	}
	return err
}

type EnqueueDispatchCommand struct {
	service DispatchService
}

func NewEnqueueDispatchCommand(service DispatchService) *EnqueueDispatchCommand {
	return &EnqueueDispatchCommand{service: service}
}

func (c *EnqueueDispatchCommand) Execute(ctx context.Context, msg EnqueueDispatchMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.EnqueueDispatch(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type IngestCallbackCommand struct {
	service CallbackService
}

func NewIngestCallbackCommand(service CallbackService) *IngestCallbackCommand {
	return &IngestCallbackCommand{service: service}
}

func (c *IngestCallbackCommand) Execute(ctx context.Context, msg IngestCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.Ingest(ctx, msg.BlockID, msg.Callback)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
