package gologger

import (
	"context"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-postwork/core"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves the glog pair, then bridges it to go-job.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}

// RunnerHook logs dispatch runner events. Starts and successes go to debug,
// retries to warn and final failures to error.
type RunnerHook struct {
	Logger glog.Logger
}

func NewRunnerHook(logger glog.Logger) *RunnerHook {
	return &RunnerHook{Logger: glog.Ensure(logger)}
}

func (h *RunnerHook) OnStart(ctx context.Context, event core.JobWorkerEvent) {
	h.logger(ctx).Debug("postwork dispatch job started", eventFields(event)...)
}

func (h *RunnerHook) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	h.logger(ctx).Debug("postwork dispatch job succeeded", eventFields(event)...)
}

func (h *RunnerHook) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	h.logger(ctx).Error("postwork dispatch job failed", eventFields(event)...)
}

func (h *RunnerHook) OnRetry(ctx context.Context, event core.JobWorkerEvent) {
	h.logger(ctx).Warn("postwork dispatch job retrying", eventFields(event)...)
}

func (h *RunnerHook) logger(ctx context.Context) glog.Logger {
	if h == nil || h.Logger == nil {
		return glog.Nop()
	}
	if ctx == nil {
		return h.Logger
	}
	return h.Logger.WithContext(ctx)
}

func eventFields(event core.JobWorkerEvent) []any {
	fields := []any{"attempt", event.Attempt}
	if event.Message != nil {
		fields = append(fields,
			"job_id", event.Message.JobID,
			"idempotency_key", event.Message.IdempotencyKey,
		)
		if req, err := core.DispatchRequestFromJob(event.Message); err == nil {
			fields = append(fields, "work_id", req.WorkID, "block_id", req.BlockID)
		}
	}
	if event.Duration > 0 {
		fields = append(fields, "duration_ms", event.Duration.Milliseconds())
	}
	if event.Delay > 0 {
		fields = append(fields, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err.Error())
	}
	return fields
}

var _ core.JobWorkerHook = (*RunnerHook)(nil)
