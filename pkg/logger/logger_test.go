package logger_test

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mind-engage/mindengage-coderunner/pkg/logger"
)

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := logger.New(logger.Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := logger.New(logger.Config{Level: "debug", Format: "console"}); err != nil {
		t.Fatalf("New: %v", err)
	}
}

func TestCtxAttachesRequestFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := logger.WithRequestID(context.Background(), "req-1")
	ctx = logger.WithSubject(ctx, "alice")
	ctx = logger.WithAttempt(ctx, "att-9")
	logger.Ctx(ctx, base).Info("graded")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	for k, want := range map[string]string{"request_id": "req-1", "sub": "alice", "attempt_id": "att-9"} {
		if fields[k] != want {
			t.Errorf("field %s = %v, want %s", k, fields[k], want)
		}
	}
}

func TestCtxWithoutFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)
	logger.Ctx(context.Background(), base).Info("plain")
	if n := len(logs.All()[0].Context); n != 0 {
		t.Fatalf("got %d fields, want 0", n)
	}
}
