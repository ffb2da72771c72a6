package logging

import (
	"context"
	"log/slog"
)

// Logger is the structured logging seam used by the mediator and its adapters.
// keyvals are alternating key/value pairs.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// Context keys for passing logger through context
type contextKey int

const (
	loggerKey contextKey = iota
)

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the logger from context, or returns a no-op logger if not found
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey).(Logger); ok {
		return logger
	}
	return NewNopLogger()
}

// slogLogger adapts *slog.Logger to Logger
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps a slog logger. A nil logger falls back to slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l}
}

func (s *slogLogger) Debug(msg string, keyvals ...any) { s.l.Debug(msg, keyvals...) }
func (s *slogLogger) Info(msg string, keyvals ...any)  { s.l.Info(msg, keyvals...) }
func (s *slogLogger) Warn(msg string, keyvals ...any)  { s.l.Warn(msg, keyvals...) }
func (s *slogLogger) Error(msg string, keyvals ...any) { s.l.Error(msg, keyvals...) }

// nopLogger is a logger that does nothing (fallback when no logger is configured)
type nopLogger struct{}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() Logger {
	return nopLogger{}
}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
