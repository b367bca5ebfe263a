package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type requestIDKey struct{}

// WithRequestID stores the request id on a standard context.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, rid)
}

// RequestID extracts the request id set by the request id middleware.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok {
		return rid
	}
	return ""
}

// Setup installs the process-wide slog handler. JSON in production,
// text everywhere else.
func Setup(env, level string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var h slog.Handler
	if env == "production" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}

func parseLevel(s string) slog.Level {
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

// Logger provides structured logging for services
type Logger struct {
	requestID string
	base      *slog.Logger
}

// NewLogger creates a logger with request context
func NewLogger(ctx context.Context) *Logger {
	requestID := RequestID(ctx)
	if requestID == "" {
		requestID = "unknown"
	}
	return &Logger{requestID: requestID, base: slog.Default()}
}

// LogError logs an error with context
func (l *Logger) LogError(operation string, err error, args ...any) {
	l.base.Error(operation, l.attrs(args, "error", err)...)
}

// LogInfo logs an info message with context
func (l *Logger) LogInfo(operation string, message string, args ...any) {
	l.base.Info(operation, l.attrs(args, "message", message)...)
}

// LogWarn logs a warning with context
func (l *Logger) LogWarn(operation string, message string, args ...any) {
	l.base.Warn(operation, l.attrs(args, "message", message)...)
}

func (l *Logger) attrs(extra []any, kv ...any) []any {
	out := make([]any, 0, len(extra)+len(kv)+2)
	out = append(out, "request_id", l.requestID)
	out = append(out, kv...)
	return append(out, extra...)
}
