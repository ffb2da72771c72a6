package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cosminstn/disruptor-mediator/internal/infrastructure/config"
)

// New builds the process logger described by cfg. The returned closer
// releases the log file when output is "file" and is a no-op otherwise.
func New(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var (
		out    io.Writer
		closer io.Closer = nopCloser{}
	)
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	case "file":
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closer = f, f
	default:
		return nil, nil, fmt.Errorf("unsupported log output %q", cfg.Output)
	}

	return slog.New(NewHandler(out, cfg.Format, level, cfg.IncludeCaller)), closer, nil
}

// NewHandler creates a JSON or text slog handler
func NewHandler(w io.Writer, format string, level slog.Leveler, addSource bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, AddSource: addSource}
	if format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
