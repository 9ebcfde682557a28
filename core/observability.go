package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// outcome classifies a finished operation for logs and metric tags.
type outcome string

const (
	outcomeSuccess  outcome = "success"
	outcomeRejected outcome = "rejected"
	outcomeFailure  outcome = "failure"
)

func classifyOutcome(err error) outcome {
	switch {
	case err == nil:
		return outcomeSuccess
	case IsValidation(err), IsNotFound(err), IsConflict(err):
		return outcomeRejected
	default:
		return outcomeFailure
	}
}

// taggedFields are copied from the log fields into metric tags when present.
var taggedFields = []string{"work_id", "webhook_id", "block_status"}

func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	operation = normalizeOperation(operation)
	elapsed := time.Since(startedAt)
	result := classifyOutcome(err)

	entry := cloneFields(fields)
	entry["event_type"] = operation
	entry["status"] = string(result)
	entry["duration_ms"] = elapsed.Milliseconds()
	if err != nil {
		annotateError(entry, err)
	}

	metrics := operationMetrics{operation: operation, tags: metricTags(string(result), entry)}
	metrics.record(ctx, s.metricsRecorder, elapsed)

	switch result {
	case outcomeSuccess:
		s.emit(ctx, logLevelInfo, operation+" succeeded", entry)
	case outcomeRejected:
		s.emit(ctx, logLevelWarn, operation+" rejected", entry)
	default:
		s.emit(ctx, logLevelError, operation+" failed", entry)
	}
}

func annotateError(entry map[string]any, err error) {
	entry["error"] = err.Error()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil {
		return
	}
	entry["error_category"] = string(rich.Category)
	entry["error_text_code"] = rich.TextCode
	entry["error_code"] = rich.Code
}

func metricTags(status string, entry map[string]any) map[string]string {
	tags := map[string]string{
		"operation": fmt.Sprint(entry["event_type"]),
		"status":    status,
	}
	for _, key := range taggedFields {
		value, ok := entry[key]
		if !ok || value == nil {
			continue
		}
		if text := strings.TrimSpace(fmt.Sprint(value)); text != "" {
			tags[key] = text
		}
	}
	return tags
}

type logLevel int

const (
	logLevelDebug logLevel = iota
	logLevelInfo
	logLevelWarn
	logLevelError
)

func (s *Service) emit(ctx context.Context, level logLevel, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if scoped, ok := logger.(FieldsLogger); ok {
		logger = scoped.WithFields(cloneFields(fields))
	}
	args := sortedArgs(fields)
	switch level {
	case logLevelDebug:
		logger.Debug(message, args...)
	case logLevelWarn:
		logger.Warn(message, args...)
	case logLevelError:
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func cloneFields(fields map[string]any) map[string]any {
	copied := make(map[string]any, len(fields)+4)
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

// sortedArgs flattens fields into key/value pairs ordered by key.
func sortedArgs(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.ToLower(strings.TrimSpace(operation))
	operation = strings.NewReplacer(" ", "_", "-", "_").Replace(operation)
	if operation == "" {
		return "unknown"
	}
	return operation
}
