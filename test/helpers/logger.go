package helpers

import (
	"sync"
)

// LogEntry is one call captured by RecordingLogger
type LogEntry struct {
	Level   string
	Message string
	KeyVals []any
}

// RecordingLogger is a test double for logging.Logger
type RecordingLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewRecordingLogger creates a new RecordingLogger
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (l *RecordingLogger) Debug(msg string, keyvals ...any) { l.record("DEBUG", msg, keyvals) }
func (l *RecordingLogger) Info(msg string, keyvals ...any)  { l.record("INFO", msg, keyvals) }
func (l *RecordingLogger) Warn(msg string, keyvals ...any)  { l.record("WARN", msg, keyvals) }
func (l *RecordingLogger) Error(msg string, keyvals ...any) { l.record("ERROR", msg, keyvals) }

func (l *RecordingLogger) record(level, msg string, keyvals []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Message: msg, KeyVals: keyvals})
}

// Entries returns a copy of every captured entry
func (l *RecordingLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// HasMessage reports whether a message was logged at level
func (l *RecordingLogger) HasMessage(level, msg string) bool {
	for _, e := range l.Entries() {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}
