package gocommand

import (
	"context"
	"errors"

	gocmd "github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	"github.com/goliatone/go-postwork/command"
	"github.com/goliatone/go-postwork/core"
	"github.com/goliatone/go-postwork/query"
)

// Subscriptions groups the dispatcher subscriptions created by RegisterPostwork.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, sub := range s {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

// RegisterPostwork registers every postwork command and query against svc
// and subscribes them on the go-command dispatcher. On failure nothing stays
// subscribed.
func RegisterPostwork(adapter *RegistryAdapter, svc core.PostworkService, runnerOpts ...runner.Option) (Subscriptions, error) {
	if svc == nil {
		return nil, errors.New("gocommand: postwork service is required")
	}
	var subs Subscriptions
	keep := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			return err
		}
		subs = append(subs, sub)
		return nil
	}

	steps := []func() error{
		func() error {
			return keep(RegisterAndSubscribe[command.DispatchBlockMessage](adapter, command.NewDispatchBlockCommand(svc), runnerOpts...))
		},
		func() error {
			return keep(RegisterAndSubscribe[command.EnqueueDispatchMessage](adapter, command.NewEnqueueDispatchCommand(svc), runnerOpts...))
		},
		func() error {
			return keep(RegisterAndSubscribe[command.IngestCallbackMessage](adapter, command.NewIngestCallbackCommand(svc), runnerOpts...))
		},
		func() error {
			return keep(RegisterAndSubscribeQuery[query.GetBlockMessage, core.Block](adapter, query.NewGetBlockQuery(svc), runnerOpts...))
		},
		func() error {
			return keep(RegisterAndSubscribeQuery[query.ListBlocksMessage, core.BlockPage](adapter, query.NewListBlocksQuery(svc), runnerOpts...))
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			subs.Unsubscribe()
			return nil, err
		}
	}
	return subs, nil
}

// DispatchBlock dispatches a DispatchBlockMessage and returns the collected
// result. A recorded delivery failure returns both the result and the error.
func DispatchBlock(ctx context.Context, req core.DispatchRequest) (core.DispatchResult, error) {
	return dispatchCollect[core.DispatchResult](ctx, command.DispatchBlockMessage{Request: req})
}

func EnqueueDispatch(ctx context.Context, req core.DispatchRequest) (core.EnqueueResult, error) {
	return dispatchCollect[core.EnqueueResult](ctx, command.EnqueueDispatchMessage{Request: req})
}

func IngestCallback(ctx context.Context, blockID string, callback core.CallbackResult) (core.IngestResult, error) {
	return dispatchCollect[core.IngestResult](ctx, command.IngestCallbackMessage{BlockID: blockID, Callback: callback})
}

func dispatchCollect[R any, T any](ctx context.Context, msg T) (R, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	collector := gocmd.NewResult[R]()
	err := Dispatch(gocmd.ContextWithResult(ctx, collector), msg)
	out, _ := collector.Load()
	return out, err
}

// DispatchService serves core.PostworkService through the handlers that
// RegisterPostwork subscribed. It holds no state of its own.
type DispatchService struct{}

func (DispatchService) Dispatch(ctx context.Context, req core.DispatchRequest) (core.DispatchResult, error) {
	return DispatchBlock(ctx, req)
}

func (DispatchService) EnqueueDispatch(ctx context.Context, req core.DispatchRequest) (core.EnqueueResult, error) {
	return EnqueueDispatch(ctx, req)
}

func (DispatchService) Ingest(ctx context.Context, blockID string, callback core.CallbackResult) (core.IngestResult, error) {
	return IngestCallback(ctx, blockID, callback)
}

func (DispatchService) GetBlock(ctx context.Context, id string) (core.Block, error) {
	return Query[query.GetBlockMessage, core.Block](ctx, query.GetBlockMessage{BlockID: id})
}

func (DispatchService) ListBlocks(ctx context.Context, filter core.BlockListFilter) (core.BlockPage, error) {
	return Query[query.ListBlocksMessage, core.BlockPage](ctx, query.ListBlocksMessage{Filter: filter})
}

var _ core.PostworkService = DispatchService{}
