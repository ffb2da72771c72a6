package helpers

import (
	"context"
	"sync"

	"github.com/cosminstn/disruptor-mediator/internal/application/mediator"
)

// RecordingFailureSink is a test double for mediator.FailureSink that keeps
// every failure in memory
type RecordingFailureSink struct {
	mu       sync.Mutex
	failures []mediator.Failure
	err      error
}

// NewRecordingFailureSink creates a new RecordingFailureSink
func NewRecordingFailureSink() *RecordingFailureSink {
	return &RecordingFailureSink{}
}

// RecordFailure implements mediator.FailureSink
func (s *RecordingFailureSink) RecordFailure(_ context.Context, failure mediator.Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure)
	return s.err
}

// SetError makes every later RecordFailure call return err
func (s *RecordingFailureSink) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Failures returns a copy of the recorded failures
func (s *RecordingFailureSink) Failures() []mediator.Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mediator.Failure, len(s.failures))
	copy(out, s.failures)
	return out
}
