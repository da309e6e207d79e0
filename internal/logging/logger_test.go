package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_Format(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "json").Info("hello", "sheet", "sao-lucas")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"sheet":"sao-lucas"`) {
		t.Errorf("json output = %q", buf.String())
	}

	buf.Reset()
	New(&buf, "warn", "text").Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
}

func TestEnrich(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	ctx = trace.ContextWithSpanContext(ctx, sc)

	var buf bytes.Buffer
	Enrich(ctx, New(&buf, "info", "text")).Info("x")

	out := buf.String()
	if !strings.Contains(out, "request_id=req-42") {
		t.Errorf("missing request_id: %q", out)
	}
	if !strings.Contains(out, "trace_id=4bf92f3577b34da6a3ce929d0e0e4736") {
		t.Errorf("missing trace_id: %q", out)
	}
}

func TestEnrich_NoContext(t *testing.T) {
	var buf bytes.Buffer
	Enrich(context.Background(), New(&buf, "info", "text")).Info("x")
	if strings.Contains(buf.String(), "request_id") || strings.Contains(buf.String(), "trace_id") {
		t.Errorf("unexpected ids: %q", buf.String())
	}
}
