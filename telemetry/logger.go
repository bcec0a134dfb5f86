// Package telemetry provides the structured logger, Prometheus metrics, and
// OpenTelemetry span helpers the get-or-compute core reports through. The
// logger follows the same slog-based, leveled-JSON shape as
// github.com/nobletooth/kiwi's pkg/utils/log.go; metrics follow its
// pkg/storage/block_cache.go promauto shape; tracing mirrors the teacher's
// tracing/interceptors.go span-per-call pattern.
package telemetry

import (
	"context"
	"log/slog"
	"os"
)

// Level is the logger's level set, matching spec.md §6
// ("trace|debug|info|warn|error"). slog has no native trace level, so Trace
// logs one step below slog.LevelDebug.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

const levelTrace = slog.LevelDebug - 4

// Logger is the structured logging surface the core consumes. The core logs
// only failures it recovers from, at warn level, with the key (and, outside
// FactoryRunner, the cache name) as attributes; the operation id is not
// attached.
type Logger interface {
	Log(ctx context.Context, level Level, msg string, kv ...any)
}

// slogLogger adapts *slog.Logger to Logger.
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger builds a Logger backed by slog's JSON handler writing to
// os.Stdout, mirroring the teacher pack's structured-logging setup.
func NewSlogLogger(minLevel Level) Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slogLevel(minLevel),
	})
	return &slogLogger{l: slog.New(handler)}
}

func (s *slogLogger) Log(ctx context.Context, level Level, msg string, kv ...any) {
	s.l.Log(ctx, slogLevel(level), msg, kv...)
}

func slogLevel(l Level) slog.Level {
	switch l {
	case LevelTrace:
		return levelTrace
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NoopLogger discards everything. Useful as a zero-configuration default.
type NoopLogger struct{}

func (NoopLogger) Log(context.Context, Level, string, ...any) {}
