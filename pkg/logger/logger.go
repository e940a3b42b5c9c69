// Package logger configures log/slog for the backend and the portal CLI and
// carries per-request fields through context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	RequestIDKey  ContextKey = "request_id"
	UsernameKey   ContextKey = "username"
	RoleKey       ContextKey = "role"
	EmployeeIDKey ContextKey = "employee_id"
)

// contextFields are copied onto every logger built by WithContext, in order
var contextFields = []ContextKey{RequestIDKey, UsernameKey, RoleKey, EmployeeIDKey}

// Config holds logger configuration
type Config struct {
	Level  string    // debug, info, warn, error
	Format string    // json, text
	Output io.Writer // defaults to stdout
}

// ParseLevel maps a level name to a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger without touching the global default
func New(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

// Init installs New(cfg) as the slog default
func Init(cfg *Config) {
	slog.SetDefault(New(cfg))
}

// WithRequestID tags ctx with the id of the current request
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// WithCaller tags ctx with the authenticated caller. Empty values are skipped.
func WithCaller(ctx context.Context, username, role, employeeID string) context.Context {
	for _, kv := range []struct {
		key ContextKey
		val string
	}{{UsernameKey, username}, {RoleKey, role}, {EmployeeIDKey, employeeID}} {
		if kv.val != "" {
			ctx = context.WithValue(ctx, kv.key, kv.val)
		}
	}
	return ctx
}

// WithContext returns the default logger with the request fields found in ctx
func WithContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if ctx == nil {
		return l
	}

	var attrs []any
	for _, key := range contextFields {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			attrs = append(attrs, string(key), v)
		}
	}
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}

// Log writes msg at level with the request fields of ctx
func Log(ctx context.Context, level slog.Level, msg string, args ...any) {
	WithContext(ctx).Log(ctx, level, msg, args...)
}

func Info(ctx context.Context, msg string, args ...any) {
	Log(ctx, slog.LevelInfo, msg, args...)
}

func Debug(ctx context.Context, msg string, args ...any) {
	Log(ctx, slog.LevelDebug, msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	Log(ctx, slog.LevelWarn, msg, args...)
}

func Error(ctx context.Context, msg string, args ...any) {
	Log(ctx, slog.LevelError, msg, args...)
}
