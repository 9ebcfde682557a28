package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryJobQueue is an in-process JobEnqueuer and JobDequeuer. Dequeue never
// blocks; it returns a nil delivery when nothing is ready.
type MemoryJobQueue struct {
	mu         sync.Mutex
	ready      []*memoryJob
	inflight   map[*memoryJob]struct{}
	deadLetter []*JobExecutionMessage
	now        func() time.Time
}

type memoryJob struct {
	message     *JobExecutionMessage
	availableAt time.Time
	attempt     int
}

func NewMemoryJobQueue() *MemoryJobQueue {
	return &MemoryJobQueue{
		inflight: map[*memoryJob]struct{}{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Enqueue adds msg unless a queued or in-flight job carries the same
// idempotency key.
func (q *MemoryJobQueue) Enqueue(_ context.Context, msg *JobExecutionMessage) error {
	if q == nil {
		return fmt.Errorf("core: job queue is nil")
	}
	if msg == nil || strings.TrimSpace(msg.JobID) == "" {
		return fmt.Errorf("core: job id is required")
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" && q.hasKeyLocked(key) {
		return nil
	}
	q.ready = append(q.ready, &memoryJob{
		message:     cloneJobMessage(msg),
		availableAt: q.now(),
	})
	return nil
}

func (q *MemoryJobQueue) Dequeue(_ context.Context) (JobDelivery, error) {
	if q == nil {
		return nil, fmt.Errorf("core: job queue is nil")
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for i, job := range q.ready {
		if job.availableAt.After(now) {
			continue
		}
		q.ready = append(q.ready[:i], q.ready[i+1:]...)
		job.attempt++
		q.inflight[job] = struct{}{}
		return &memoryDelivery{queue: q, job: job}, nil
	}
	return nil, nil
}

// Len reports queued plus in-flight jobs.
func (q *MemoryJobQueue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready) + len(q.inflight)
}

func (q *MemoryJobQueue) DeadLetters() []*JobExecutionMessage {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*JobExecutionMessage, 0, len(q.deadLetter))
	for _, msg := range q.deadLetter {
		out = append(out, cloneJobMessage(msg))
	}
	return out
}

func (q *MemoryJobQueue) hasKeyLocked(key string) bool {
	for _, job := range q.ready {
		if strings.TrimSpace(job.message.IdempotencyKey) == key {
			return true
		}
	}
	for job := range q.inflight {
		if strings.TrimSpace(job.message.IdempotencyKey) == key {
			return true
		}
	}
	return false
}

type memoryDelivery struct {
	queue *MemoryJobQueue
	job   *memoryJob
	done  bool
}

func (d *memoryDelivery) Message() *JobExecutionMessage {
	if d == nil || d.job == nil {
		return nil
	}
	return cloneJobMessage(d.job.message)
}

// Attempt is the 1-based delivery count of the job.
func (d *memoryDelivery) Attempt() int {
	if d == nil || d.job == nil {
		return 0
	}
	return d.job.attempt
}

func (d *memoryDelivery) Ack(_ context.Context) error {
	if d == nil || d.queue == nil {
		return fmt.Errorf("core: delivery is not configured")
	}
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()
	if d.done {
		return nil
	}
	d.done = true
	delete(d.queue.inflight, d.job)
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts JobNackOptions) error {
	if d == nil || d.queue == nil {
		return fmt.Errorf("core: delivery is not configured")
	}
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()
	if d.done {
		return nil
	}
	d.done = true
	delete(d.queue.inflight, d.job)
	switch {
	case opts.DeadLetter:
		d.queue.deadLetter = append(d.queue.deadLetter, cloneJobMessage(d.job.message))
	case opts.Requeue:
		delay := opts.Delay
		if delay < 0 {
			delay = 0
		}
		d.job.availableAt = d.queue.now().Add(delay)
		d.queue.ready = append(d.queue.ready, d.job)
	}
	return nil
}

func cloneJobMessage(msg *JobExecutionMessage) *JobExecutionMessage {
	if msg == nil {
		return nil
	}
	out := *msg
	out.Parameters = make(map[string]any, len(msg.Parameters))
	for key, value := range msg.Parameters {
		out.Parameters[key] = value
	}
	return &out
}

var (
	_ JobEnqueuer = (*MemoryJobQueue)(nil)
	_ JobDequeuer = (*MemoryJobQueue)(nil)
	_ JobDelivery = (*memoryDelivery)(nil)
)
