package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cosminstn/disruptor-mediator/internal/application/logging"
)

func TestSlogLogger_WritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	l := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	l.Debug("registering handler", "name", "increment")
	l.Error("event handler failed", "handler", "audit", "error", "boom")

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, "name=increment")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "handler=audit")
}

func TestFromContext_FallsBackToNop(t *testing.T) {
	l := logging.FromContext(context.Background())
	assert.NotNil(t, l)
	assert.NotPanics(t, func() { l.Info("ignored") })
}

func TestWithLogger_RoundTripsThroughContext(t *testing.T) {
	var buf bytes.Buffer
	l := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	ctx := logging.WithLogger(context.Background(), l)
	logging.FromContext(ctx).Info("dispatched", "group", 2)

	assert.Contains(t, buf.String(), `"group":2`)
}
