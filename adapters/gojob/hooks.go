package gojob

import (
	"context"

	"github.com/goliatone/go-job/queue/worker"

	"github.com/goliatone/go-postwork/core"
)

// WorkerHook lets a go-job worker report into a postwork runner hook such as
// the gologger RunnerHook.
type WorkerHook struct {
	hook core.JobWorkerHook
}

func NewWorkerHook(hook core.JobWorkerHook) *WorkerHook {
	return &WorkerHook{hook: hook}
}

func (h *WorkerHook) OnStart(ctx context.Context, event worker.Event) {
	h.forward(ctx, event, core.JobWorkerHook.OnStart)
}

func (h *WorkerHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.forward(ctx, event, core.JobWorkerHook.OnSuccess)
}

func (h *WorkerHook) OnFailure(ctx context.Context, event worker.Event) {
	h.forward(ctx, event, core.JobWorkerHook.OnFailure)
}

func (h *WorkerHook) OnRetry(ctx context.Context, event worker.Event) {
	h.forward(ctx, event, core.JobWorkerHook.OnRetry)
}

func (h *WorkerHook) forward(
	ctx context.Context,
	event worker.Event,
	fn func(core.JobWorkerHook, context.Context, core.JobWorkerEvent),
) {
	if h == nil || h.hook == nil {
		return
	}
	fn(h.hook, ctx, workerEvent(event))
}

func workerEvent(event worker.Event) core.JobWorkerEvent {
	msg := event.Message
	if msg == nil && event.Delivery != nil {
		msg = event.Delivery.Message()
	}
	return core.JobWorkerEvent{
		Message:   Decode(msg),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
}

var _ worker.Hook = (*WorkerHook)(nil)
