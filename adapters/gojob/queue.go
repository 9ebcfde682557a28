package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-job/queue"

	"github.com/goliatone/go-postwork/core"
)

// RetryPolicy bounds how a failed dispatch delivery is nacked.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     5,
	MaxDelay:        time.Minute,
	DeadLetterOnMax: true,
}

// Apply turns a runner nack into go-job nack options for the given attempt.
// Below the attempt limit a nack always requeues unless it dead letters. At
// the limit the job is dead lettered when DeadLetterOnMax is set and dropped
// otherwise.
func (p RetryPolicy) Apply(opts core.JobNackOptions, attempt int) queue.NackOptions {
	out := queue.NackOptions{
		Delay:      max(opts.Delay, 0),
		DeadLetter: opts.DeadLetter,
		Reason:     strings.TrimSpace(opts.Reason),
	}
	if p.MaxDelay > 0 {
		out.Delay = min(out.Delay, p.MaxDelay)
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.DeadLetter = out.DeadLetter || p.DeadLetterOnMax
		return out
	}
	out.Requeue = !out.DeadLetter
	return out
}

// Enqueuer publishes postwork jobs to a go-job queue.
type Enqueuer struct {
	queue queue.Enqueuer
}

func NewEnqueuer(q queue.Enqueuer) *Enqueuer {
	return &Enqueuer{queue: q}
}

func (e *Enqueuer) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if e == nil || e.queue == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	return e.queue.Enqueue(ctx, Encode(msg))
}

// Dequeuer exposes a go-job queue as a postwork job source. Every delivery is
// nacked through policy.
type Dequeuer struct {
	queue  queue.Dequeuer
	policy RetryPolicy
}

func NewDequeuer(q queue.Dequeuer, policy RetryPolicy) *Dequeuer {
	return &Dequeuer{queue: q, policy: policy}
}

func (d *Dequeuer) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if d == nil || d.queue == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	raw, err := d.queue.Dequeue(ctx)
	if err != nil || raw == nil {
		return nil, err
	}
	return &Delivery{raw: raw, policy: d.policy}, nil
}

type Delivery struct {
	raw    queue.Delivery
	policy RetryPolicy
}

func (d *Delivery) Message() *core.JobExecutionMessage {
	if d == nil || d.raw == nil {
		return nil
	}
	return Decode(d.raw.Message())
}

// Attempt is the delivery count reported by the go-job backend, or 0 when
// the backend does not track one.
func (d *Delivery) Attempt() int {
	if d == nil || d.raw == nil {
		return 0
	}
	if counted, ok := d.raw.(interface{ Attempt() int }); ok {
		return counted.Attempt()
	}
	return 0
}

func (d *Delivery) Ack(ctx context.Context) error {
	if d == nil || d.raw == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.raw.Ack(ctx)
}

func (d *Delivery) Nack(ctx context.Context, opts core.JobNackOptions) error {
	if d == nil || d.raw == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.raw.Nack(ctx, d.policy.Apply(opts, d.Attempt()))
}

var (
	_ core.JobEnqueuer = (*Enqueuer)(nil)
	_ core.JobDequeuer = (*Dequeuer)(nil)
	_ core.JobDelivery = (*Delivery)(nil)
)
