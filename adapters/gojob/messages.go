// Package gojob bridges postwork dispatch jobs onto go-job queues and workers.
package gojob

import (
	"strings"

	job "github.com/goliatone/go-job"

	"github.com/goliatone/go-postwork/core"
)

const JobIDBlockDispatch = core.JobIDBlockDispatch

// Encode converts a postwork job message into its go-job form.
func Encode(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     cloneParameters(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

func Decode(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     cloneParameters(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

// DispatchMessage builds the go-job message for one dispatch attempt of a
// block.
func DispatchMessage(req core.DispatchRequest, attempt int) *job.ExecutionMessage {
	return Encode(core.DispatchJobMessage(req, attempt))
}

// DecodeDispatch recovers the dispatch request carried by a go-job message.
func DecodeDispatch(msg *job.ExecutionMessage) (core.DispatchRequest, error) {
	return core.DispatchRequestFromJob(Decode(msg))
}

func cloneParameters(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
