package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func captureDefault(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})))
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
		quiet  bool
	}{
		{"json", Config{Level: "info", Format: "json"}, `"msg":"document uploaded"`, false},
		{"json upper case", Config{Level: "info", Format: "JSON"}, `"msg":"document uploaded"`, false},
		{"text", Config{Level: "debug", Format: "text"}, `msg="document uploaded"`, false},
		{"filtered", Config{Level: "error", Format: "text"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			cfg := tt.config
			cfg.Output = &buf
			New(&cfg).Info("document uploaded", "document_id", "doc-1")

			out := buf.String()
			if tt.quiet {
				if out != "" {
					t.Errorf("Expected no output below the configured level, got %s", out)
				}
				return
			}
			if !strings.Contains(out, tt.want) || !strings.Contains(out, "doc-1") {
				t.Errorf("Expected %q in output, got %s", tt.want, out)
			}
		})
	}
}

func TestInitReplacesDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Init(&Config{Level: "warn", Format: "text", Output: &buf})
	slog.Info("dropped")
	slog.Warn("kept")

	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Errorf("unexpected output %s", buf.String())
	}
}

func TestWithContextCarriesRequestFields(t *testing.T) {
	buf := captureDefault(t, slog.LevelDebug)

	ctx := WithRequestID(context.Background(), "req-42")
	ctx = WithCaller(ctx, "asha", "employee", "EMP-7")
	WithContext(ctx).Info("scoped")

	out := buf.String()
	for _, want := range []string{"request_id=req-42", "username=asha", "role=employee", "employee_id=EMP-7"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in log, got %s", want, out)
		}
	}
}

func TestWithCallerSkipsEmpty(t *testing.T) {
	buf := captureDefault(t, slog.LevelInfo)

	ctx := WithCaller(context.Background(), "hr1", "hr", "")
	Info(ctx, "listing")

	if strings.Contains(buf.String(), "employee_id") {
		t.Errorf("Expected empty employee id to be skipped, got %s", buf.String())
	}
}

func TestWithContextEmpty(t *testing.T) {
	if WithContext(context.Background()) != slog.Default() {
		t.Error("Expected the default logger when ctx carries no fields")
	}
}

func TestLevelHelpers(t *testing.T) {
	buf := captureDefault(t, slog.LevelDebug)
	ctx := WithRequestID(context.Background(), "req-1")

	tests := []struct {
		log   func(context.Context, string, ...any)
		level string
	}{
		{Debug, "DEBUG"},
		{Info, "INFO"},
		{Warn, "WARN"},
		{Error, "ERROR"},
	}
	for _, tt := range tests {
		buf.Reset()
		tt.log(ctx, "analysis step", "document_id", "doc-1")
		out := buf.String()
		if !strings.Contains(out, "level="+tt.level) || !strings.Contains(out, "request_id=req-1") {
			t.Errorf("Expected %s line with request id, got %s", tt.level, out)
		}
	}
}
