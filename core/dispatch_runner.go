package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	JobIDBlockDispatch = "postwork.block.dispatch"

	defaultDispatchRetryDelay  = 5 * time.Second
	defaultDispatchMaxAttempts = 5
)

// EnqueueDispatch validates a dispatch request and hands it to the job
// enqueuer. The block is not touched; the runner performs the transition.
func (s *Service) EnqueueDispatch(ctx context.Context, req DispatchRequest) (result EnqueueResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"work_id":    strings.TrimSpace(req.WorkID),
		"block_id":   strings.TrimSpace(req.BlockID),
		"webhook_id": strings.TrimSpace(req.WebhookID),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "enqueue_dispatch", err, fields)
	}()

	if err = s.requireStore(); err != nil {
		return EnqueueResult{}, err
	}
	if s.jobEnqueuer == nil {
		err = FatalError("core: job enqueuer is not configured", nil)
		return EnqueueResult{}, err
	}
	if err = validateDispatchRequest(req); err != nil {
		return EnqueueResult{}, err
	}
	_, block, webhook, err := s.loadDispatchTargets(ctx, req)
	if err != nil {
		return EnqueueResult{}, err
	}
	fields["webhook_id"] = webhook.ID
	fields["block_status"] = string(block.Status)
	if block.Status != BlockStatusPending && block.Status != BlockStatusFailed {
		err = ConflictError(
			fmt.Sprintf("core: block %s is %s and cannot be dispatched", block.ID, block.Status),
			ErrInvalidBlockStatusTransition,
		)
		return EnqueueResult{}, err
	}

	msg := DispatchJobMessage(DispatchRequest{
		WorkID:    block.WorkID,
		BlockID:   block.ID,
		WebhookID: webhook.ID,
	}, block.Attempts)
	if err = s.jobEnqueuer.Enqueue(ctx, msg); err != nil {
		err = FatalError("core: enqueue dispatch for block "+block.ID, err)
		return EnqueueResult{}, err
	}
	return EnqueueResult{
		BlockID:        block.ID,
		JobID:          msg.JobID,
		IdempotencyKey: msg.IdempotencyKey,
	}, nil
}

// DispatchJobMessage encodes a dispatch request as a job. The idempotency key
// is scoped to the block attempt so a re-dispatch after failure enqueues anew.
func DispatchJobMessage(req DispatchRequest, attempt int) *JobExecutionMessage {
	blockID := strings.TrimSpace(req.BlockID)
	return &JobExecutionMessage{
		JobID: JobIDBlockDispatch,
		Parameters: map[string]any{
			"work_id":    strings.TrimSpace(req.WorkID),
			"block_id":   blockID,
			"webhook_id": strings.TrimSpace(req.WebhookID),
		},
		IdempotencyKey: fmt.Sprintf("%s:%s:%d", JobIDBlockDispatch, blockID, attempt),
	}
}

// DispatchRequestFromJob decodes a dispatch job message.
func DispatchRequestFromJob(msg *JobExecutionMessage) (DispatchRequest, error) {
	if msg == nil {
		return DispatchRequest{}, fmt.Errorf("core: job message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDBlockDispatch {
		return DispatchRequest{}, fmt.Errorf("core: unsupported job id %q", msg.JobID)
	}
	req := DispatchRequest{
		WorkID:    jobParam(msg.Parameters, "work_id"),
		BlockID:   jobParam(msg.Parameters, "block_id"),
		WebhookID: jobParam(msg.Parameters, "webhook_id"),
	}
	if err := validateDispatchRequest(req); err != nil {
		return DispatchRequest{}, err
	}
	return req, nil
}

func jobParam(params map[string]any, key string) string {
	value, ok := params[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

type BlockDispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error)
}

type DispatchRunnerConfig struct {
	Workers      int
	PollInterval time.Duration
	RetryDelay   time.Duration
	MaxAttempts  int
}

type DispatchRunnerOption func(*DispatchRunner)

func WithRunnerLogger(logger Logger) DispatchRunnerOption {
	return func(r *DispatchRunner) {
		r.logger = logger
	}
}

func WithRunnerHook(hook JobWorkerHook) DispatchRunnerOption {
	return func(r *DispatchRunner) {
		r.hook = hook
	}
}

// DispatchRunner drains dispatch jobs on background goroutines. Jobs whose
// outcome is recorded on the block are acknowledged; only store or wiring
// failures are requeued.
type DispatchRunner struct {
	dispatcher BlockDispatcher
	dequeuer   JobDequeuer
	config     DispatchRunnerConfig
	logger     Logger
	hook       JobWorkerHook
}

func NewDispatchRunner(
	dispatcher BlockDispatcher,
	dequeuer JobDequeuer,
	config DispatchRunnerConfig,
	opts ...DispatchRunnerOption,
) (*DispatchRunner, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("core: dispatch runner requires a dispatcher")
	}
	if dequeuer == nil {
		return nil, fmt.Errorf("core: dispatch runner requires a dequeuer")
	}
	if config.Workers <= 0 {
		config.Workers = DefaultRunnerWorkers
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultRunnerPollInterval
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaultDispatchRetryDelay
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultDispatchMaxAttempts
	}
	runner := &DispatchRunner{
		dispatcher: dispatcher,
		dequeuer:   dequeuer,
		config:     config,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(runner)
		}
	}
	runner.logger = glog.Ensure(runner.logger)
	return runner, nil
}

// Run blocks until ctx is done.
func (r *DispatchRunner) Run(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("core: dispatch runner is nil")
	}
	var wg sync.WaitGroup
	for i := 0; i < r.config.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r.loop(ctx, worker)
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}

func (r *DispatchRunner) loop(ctx context.Context, worker int) {
	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := r.ProcessNext(ctx)
		if err != nil {
			r.logger.Error("dispatch runner iteration failed", "worker", worker, "error", err)
		}
		if processed {
			continue
		}
		if waitErr := waitWithContext(ctx, r.config.PollInterval); waitErr != nil {
			return
		}
	}
}

// ProcessNext handles at most one delivery and reports whether one was
// available.
func (r *DispatchRunner) ProcessNext(ctx context.Context) (bool, error) {
	if r == nil || r.dequeuer == nil {
		return false, fmt.Errorf("core: dispatch runner is not configured")
	}
	delivery, err := r.dequeuer.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if delivery == nil {
		return false, nil
	}

	msg := delivery.Message()
	attempt := deliveryAttempt(delivery)
	startedAt := time.Now().UTC()
	event := JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: startedAt}
	r.onStart(ctx, event)

	req, decodeErr := DispatchRequestFromJob(msg)
	if decodeErr != nil {
		event.Err = decodeErr
		event.Duration = time.Since(startedAt)
		r.onFailure(ctx, event)
		return true, delivery.Nack(ctx, JobNackOptions{DeadLetter: true, Reason: decodeErr.Error()})
	}

	_, dispatchErr := r.dispatcher.Dispatch(ctx, req)
	event.Err = dispatchErr
	event.Duration = time.Since(startedAt)

	switch {
	case dispatchErr == nil:
		r.onSuccess(ctx, event)
		return true, delivery.Ack(ctx)
	case IsFatal(dispatchErr) && attempt < r.config.MaxAttempts:
		event.Delay = r.config.RetryDelay
		r.onRetry(ctx, event)
		return true, delivery.Nack(ctx, JobNackOptions{
			Delay:   r.config.RetryDelay,
			Requeue: true,
			Reason:  dispatchErr.Error(),
		})
	case IsFatal(dispatchErr):
		r.onFailure(ctx, event)
		return true, delivery.Nack(ctx, JobNackOptions{DeadLetter: true, Reason: dispatchErr.Error()})
	default:
		// Validation, not found, conflict and transport outcomes are final
		// for this job.
		r.onFailure(ctx, event)
		return true, delivery.Ack(ctx)
	}
}

func deliveryAttempt(delivery JobDelivery) int {
	if counted, ok := delivery.(interface{ Attempt() int }); ok {
		if attempt := counted.Attempt(); attempt > 0 {
			return attempt
		}
	}
	return 1
}

func (r *DispatchRunner) onStart(ctx context.Context, event JobWorkerEvent) {
	if r.hook != nil {
		r.hook.OnStart(ctx, event)
	}
}

func (r *DispatchRunner) onSuccess(ctx context.Context, event JobWorkerEvent) {
	if r.hook != nil {
		r.hook.OnSuccess(ctx, event)
	}
}

func (r *DispatchRunner) onFailure(ctx context.Context, event JobWorkerEvent) {
	if r.hook != nil {
		r.hook.OnFailure(ctx, event)
	}
}

func (r *DispatchRunner) onRetry(ctx context.Context, event JobWorkerEvent) {
	if r.hook != nil {
		r.hook.OnRetry(ctx, event)
	}
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
