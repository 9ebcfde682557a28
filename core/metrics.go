package core

import (
	"context"
	"time"
)

const metricsNamespace = "postwork"

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

var _ MetricsRecorder = NopMetricsRecorder{}

// operationMetrics emits postwork.<operation>.total and
// postwork.<operation>.duration_ms with a shared tag set.
type operationMetrics struct {
	operation string
	tags      map[string]string
}

func (m operationMetrics) name(suffix string) string {
	return metricsNamespace + "." + m.operation + "." + suffix
}

func (m operationMetrics) record(ctx context.Context, recorder MetricsRecorder, elapsed time.Duration) {
	if recorder == nil {
		return
	}
	recorder.IncCounter(ctx, m.name("total"), 1, cloneTags(m.tags))
	recorder.ObserveHistogram(ctx, m.name("duration_ms"), float64(elapsed.Milliseconds()), cloneTags(m.tags))
}

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}
