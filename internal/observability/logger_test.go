package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies that parseLogLevel handles case and whitespace
// and falls back to INFO.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		env    string
		expect zapcore.Level
	}{
		{"", zap.InfoLevel},
		{"INFO", zap.InfoLevel},
		{"DEBUG", zap.DebugLevel},
		{"WARN", zap.WarnLevel},
		{"ERROR", zap.ErrorLevel},
		{"debug", zap.DebugLevel},
		{"  warn  ", zap.WarnLevel},
		{"invalid", zap.InfoLevel},
	}
	for _, tt := range tests {
		level := parseLogLevel(tt.env)
		if got := level.Level(); got != tt.expect {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.env, got, tt.expect)
		}
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("worker")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if logger == nil {
		t.Fatal("NewLogger() returned nil logger")
	}
	logger.Info("test message")
	if err := FlushTelemetry(context.Background(), logger); err != nil {
		t.Logf("FlushTelemetry() = %v (stderr may not be syncable here)", err)
	}
}

func TestLoggerFrom(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	scoped := zap.New(core)
	fallback := zap.NewNop()

	ctx := WithLogger(context.Background(), scoped)
	LoggerFrom(ctx, fallback).Info("scoped")
	if logs.Len() != 1 {
		t.Errorf("scoped logger entries = %d, want 1", logs.Len())
	}

	if got := LoggerFrom(context.Background(), fallback); got != fallback {
		t.Error("LoggerFrom() without scoped logger should return fallback")
	}
	if got := LoggerFrom(context.Background(), nil); got == nil {
		t.Error("LoggerFrom() with nil fallback returned nil")
	}
}

func TestCorrelationID(t *testing.T) {
	if id := CorrelationID(context.Background()); id != "" {
		t.Errorf("CorrelationID() = %q, want empty", id)
	}
	ctx := WithCorrelationID(context.Background(), "abc-123")
	if id := CorrelationID(ctx); id != "abc-123" {
		t.Errorf("CorrelationID() = %q, want abc-123", id)
	}
	// The provider client reads the raw string key.
	if v, _ := ctx.Value("correlation_id").(string); v != "abc-123" {
		t.Errorf("ctx.Value(correlation_id) = %q, want abc-123", v)
	}
}

func TestFlushTelemetry_NilLogger(t *testing.T) {
	if err := FlushTelemetry(context.Background(), nil); err != nil {
		t.Errorf("FlushTelemetry(nil) = %v, want nil", err)
	}
}
