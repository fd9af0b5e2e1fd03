package logger_test

import (
	"context"
	"testing"

	"tutorjudge/pkg/utils/contextkey"
	"tutorjudge/pkg/utils/logger"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsTraceFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.SetGlobal(logger.Wrap(zap.New(core)))
	defer logger.SetGlobal(prev)

	ctx := context.WithValue(context.Background(), contextkey.TraceID, "trace-1")
	ctx = context.WithValue(ctx, contextkey.SubmissionID, "sub-1")
	logger.Info(ctx, "judged", zap.String("backend", "remote"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["trace_id"] != "trace-1" {
		t.Fatalf("unexpected trace id: %v", fields["trace_id"])
	}
	if fields["submission_id"] != "sub-1" {
		t.Fatalf("unexpected submission id: %v", fields["submission_id"])
	}
	if fields["backend"] != "remote" {
		t.Fatalf("unexpected backend: %v", fields["backend"])
	}
	if _, ok := fields["request_id"]; ok {
		t.Fatalf("request id should be absent")
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	if _, err := logger.NewLogger(logger.Config{Level: "loud"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
	if _, err := logger.NewLogger(logger.Config{Level: "info", Format: "json", OutputPath: "discard", ErrorPath: "discard"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGlobalHelpersWithoutLogger(t *testing.T) {
	prev := logger.SetGlobal(nil)
	defer logger.SetGlobal(prev)

	logger.Info(context.Background(), "dropped")
	if l := logger.WithFields(context.Background()); l == nil {
		t.Fatalf("expected nop logger")
	}
}
