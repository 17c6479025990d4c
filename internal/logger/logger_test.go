package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/Strob0t/clawkanban/internal/config"
)

func TestNew(t *testing.T) {
	cfg := config.Logging{Level: "debug", Service: "test-svc"}
	l, closer := New(cfg)
	defer closer.Close()
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewAsync(t *testing.T) {
	cfg := config.Logging{Level: "debug", Service: "test-svc", Async: true}
	l, closer := New(cfg)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	closer.Close()
}

func TestNewWithWriterServiceAttr(t *testing.T) {
	var buf bytes.Buffer
	l, closer := NewWithWriter(config.Logging{Level: "info", Service: "kanban-test"}, &buf)
	l.Info("settled", "task_id", "abc123def456")
	closer.Close()

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["service"] != "kanban-test" {
		t.Errorf("expected service attr, got %v", rec["service"])
	}
	if rec["task_id"] != "abc123def456" {
		t.Errorf("expected task_id attr, got %v", rec["task_id"])
	}
}

func TestNewWithWriterAsyncFlushesOnClose(t *testing.T) {
	var buf bytes.Buffer
	l, closer := NewWithWriter(config.Logging{Level: "info", Service: "svc", Async: true}, &buf)
	l.Info("one")
	l.Info("two")
	closer.Close()

	if got := bytes.Count(buf.Bytes(), []byte("\n")); got != 2 {
		t.Fatalf("expected 2 lines after close, got %d: %q", got, buf.String())
	}
}

func TestNewWithWriterLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l, closer := NewWithWriter(config.Logging{Level: "warn", Service: "svc"}, &buf)
	l.Info("hidden")
	l.Warn("shown")
	closer.Close()

	if bytes.Contains(buf.Bytes(), []byte("hidden")) {
		t.Error("info record should be filtered at warn level")
	}
	if !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Error("warn record should be written")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{" ERROR ", "ERROR"},
		{"unknown", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input).String()
			if got != tt.want {
				t.Errorf("parseLevel(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()

	// Empty context returns empty string
	if got := RequestID(ctx); got != "" {
		t.Errorf("expected empty request ID, got %q", got)
	}

	ctx = WithRequestID(ctx, "req-123")
	if got := RequestID(ctx); got != "req-123" {
		t.Errorf("expected req-123, got %q", got)
	}
	if From(ctx) == nil {
		t.Error("expected non-nil logger from context")
	}
}
