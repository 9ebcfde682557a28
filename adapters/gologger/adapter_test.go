package gologger

import (
	"context"
	"errors"
	"testing"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-postwork/core"
)

func TestResolveDeterministicFallback(t *testing.T) {
	loggerOnly := &capturingLogger{id: "logger"}
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	var resolvedProvider glog.LoggerProvider
	_, resolved := Resolve("postwork", provider, loggerOnly)
	got := resolved.(*capturingLogger)
	if got.id != "provider" {
		t.Fatalf("expected provider logger precedence, got %q", got.id)
	}

	resolvedProvider, resolved = Resolve("postwork", nil, loggerOnly)
	got = resolved.(*capturingLogger)
	if got.id != "logger" {
		t.Fatalf("expected direct logger when provider is nil, got %q", got.id)
	}
	if resolvedProvider == nil {
		t.Fatalf("expected provider wrapper from logger")
	}

	_, resolved = Resolve("postwork", nil, nil)
	if resolved == nil {
		t.Fatalf("expected nop logger fallback")
	}
}

func TestGoJobBridgeCompatibility(t *testing.T) {
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	_, _, jobProvider, jobLogger := ResolveForJob("postwork", provider, nil)
	if jobProvider == nil {
		t.Fatalf("expected go-job provider bridge")
	}
	if jobLogger == nil {
		t.Fatalf("expected go-job logger bridge")
	}

	bridged := jobProvider.GetLogger("postwork")
	bridged.Info("hello", "k", "v")

	captured := providerLogger.lastInfo
	if captured.msg != "hello" {
		t.Fatalf("expected bridged message, got %q", captured.msg)
	}
	if captured.args[0] != "k" || captured.args[1] != "v" {
		t.Fatalf("expected bridged args, got %#v", captured.args)
	}
}

func TestRunnerHook_LogsEventsByLevel(t *testing.T) {
	logger := &capturingLogger{id: "runner"}
	hook := NewRunnerHook(logger)
	event := core.JobWorkerEvent{
		Message: core.DispatchJobMessage(core.DispatchRequest{WorkID: "work_1", BlockID: "block_1"}, 0),
		Attempt: 2,
		Delay:   3 * time.Second,
		Err:     errors.New("store unavailable"),
	}

	hook.OnRetry(context.Background(), event)
	if logger.lastLevel != "warn" || logger.last.msg != "postwork dispatch job retrying" {
		t.Fatalf("unexpected retry log %s %q", logger.lastLevel, logger.last.msg)
	}
	fields := map[string]any{}
	for i := 0; i+1 < len(logger.last.args); i += 2 {
		fields[logger.last.args[i].(string)] = logger.last.args[i+1]
	}
	if fields["block_id"] != "block_1" || fields["work_id"] != "work_1" || fields["attempt"] != 2 {
		t.Fatalf("expected job coordinates in fields, got %#v", fields)
	}
	if fields["delay_ms"] != int64(3000) || fields["error"] != "store unavailable" {
		t.Fatalf("expected delay and error fields, got %#v", fields)
	}

	hook.OnFailure(context.Background(), event)
	if logger.lastLevel != "error" {
		t.Fatalf("expected failure at error level, got %s", logger.lastLevel)
	}
	hook.OnSuccess(context.Background(), core.JobWorkerEvent{Attempt: 1})
	if logger.lastLevel != "debug" || logger.last.msg != "postwork dispatch job succeeded" {
		t.Fatalf("unexpected success log %s %q", logger.lastLevel, logger.last.msg)
	}
}

func TestRunnerHook_NilIsSilent(t *testing.T) {
	var hook *RunnerHook
	hook.OnStart(context.Background(), core.JobWorkerEvent{})
	NewRunnerHook(nil).OnFailure(context.Background(), core.JobWorkerEvent{Err: errors.New("x")})
}

var (
	_ glog.Logger         = (*capturingLogger)(nil)
	_ glog.LoggerProvider = (*capturingProvider)(nil)
)

type capturingProvider struct {
	logger *capturingLogger
}

func (p *capturingProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type infoCall struct {
	msg  string
	args []any
}

type capturingLogger struct {
	id        string
	lastInfo  infoCall
	lastLevel string
	last      infoCall
}

func (l *capturingLogger) record(level string, msg string, args []any) {
	l.lastLevel = level
	l.last = infoCall{msg: msg, args: append([]any(nil), args...)}
}

func (l *capturingLogger) Trace(msg string, args ...any) { l.record("trace", msg, args) }
func (l *capturingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *capturingLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *capturingLogger) Error(msg string, args ...any) { l.record("error", msg, args) }
func (l *capturingLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args) }

func (l *capturingLogger) Info(msg string, args ...any) {
	l.lastInfo = infoCall{
		msg:  msg,
		args: append([]any(nil), args...),
	}
}

func (l *capturingLogger) WithContext(context.Context) glog.Logger {
	return l
}
