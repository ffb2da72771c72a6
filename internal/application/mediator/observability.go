package mediator

import (
	"context"
	"reflect"
	"strings"
	"time"
)

// MetricsRecorder receives dispatch and processing events.
// Implementations must be safe for concurrent use: every worker reports through it.
type MetricsRecorder interface {
	RecordDispatch(kind Kind, messageType string, group int)
	RecordProcessed(kind Kind, messageType string, group int, duration time.Duration, err error)
	RecordEventHandlerFailure(eventType, handler string)
}

// Failure describes one failed handler invocation
type Failure struct {
	ID          string
	MediatorID  string
	Kind        Kind
	MessageType string
	Handler     string
	Group       int
	Error       string
	Panicked    bool
	OccurredAt  time.Time
}

// FailureSink records handler failures. It is called on the worker that ran
// the handler, so it should be quick.
type FailureSink interface {
	RecordFailure(ctx context.Context, failure Failure) error
}

type nopMetrics struct{}

func (nopMetrics) RecordDispatch(Kind, string, int)                        {}
func (nopMetrics) RecordProcessed(Kind, string, int, time.Duration, error) {}
func (nopMetrics) RecordEventHandlerFailure(string, string)                {}

// MessageName returns a short name for a message type
// Examples:
//   - "*commands.IncrementCommand" → "IncrementCommand"
//   - "samples.NextNumberQuery" → "NextNumberQuery"
func MessageName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	name := strings.TrimPrefix(t.String(), "*")
	if i := strings.LastIndex(name, "."); i >= 0 && !strings.Contains(name, "[") {
		return name[i+1:]
	}
	return name
}
