package telemetry

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHelpersWriteSortedFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := L()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })

	Warn("provider.failed", map[string]any{"provider": "craft", "error": errors.New("timeout")})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Level != zapcore.WarnLevel || e.Message != "provider.failed" {
		t.Fatalf("unexpected entry: %v %q", e.Level, e.Message)
	}
	fields := e.ContextMap()
	if fields["provider"] != "craft" || fields["error"] != "timeout" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if e.Context[0].Key != "error" {
		t.Fatalf("expected fields sorted by key, got first %q", e.Context[0].Key)
	}
}

func TestNewRejectsBadLevelGracefully(t *testing.T) {
	logger, err := New(Config{Level: "loud", Encoding: "console"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected fallback to info level")
	}
}

func TestSetLoggerNilUsesNop(t *testing.T) {
	prev := L()
	t.Cleanup(func() { SetLogger(prev) })
	SetLogger(nil)
	Info("ignored", nil)
	if L() == nil {
		t.Fatalf("expected a logger")
	}
}
