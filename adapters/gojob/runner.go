package gojob

import (
	"fmt"

	"github.com/goliatone/go-job/queue"

	"github.com/goliatone/go-postwork/core"
)

// NewDispatchRunner drains block dispatch jobs from a go-job dequeuer. The
// policy attempt limit fills config.MaxAttempts when it is unset.
func NewDispatchRunner(
	dispatcher core.BlockDispatcher,
	dequeuer queue.Dequeuer,
	policy RetryPolicy,
	config core.DispatchRunnerConfig,
	opts ...core.DispatchRunnerOption,
) (*core.DispatchRunner, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = policy.MaxAttempts
	}
	return core.NewDispatchRunner(dispatcher, NewDequeuer(dequeuer, policy), config, opts...)
}
