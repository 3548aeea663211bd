package testutil

import (
	"context"
	"sync"

	"github.com/nimburion/recordbench/pkg/observability/logger"
)

// LogEntry is one captured log call.
type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]any
}

// RecordingLogger captures log calls in memory. Children created by With share
// the parent's entries.
type RecordingLogger struct {
	mu      *sync.Mutex
	entries *[]LogEntry
	fields  []any
}

// NewRecordingLogger returns an empty RecordingLogger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{mu: &sync.Mutex{}, entries: &[]LogEntry{}}
}

// Entries returns a copy of everything logged so far.
func (l *RecordingLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry(nil), (*l.entries)...)
}

// EntriesAt returns the entries logged at level.
func (l *RecordingLogger) EntriesAt(level string) []LogEntry {
	var out []LogEntry
	for _, entry := range l.Entries() {
		if entry.Level == level {
			out = append(out, entry)
		}
	}
	return out
}

func (l *RecordingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *RecordingLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *RecordingLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *RecordingLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

func (l *RecordingLogger) With(args ...any) logger.Logger {
	child := *l
	child.fields = append(append([]any(nil), l.fields...), args...)
	return &child
}

func (l *RecordingLogger) WithContext(context.Context) logger.Logger {
	return l
}

func (l *RecordingLogger) record(level, msg string, args []any) {
	fields := make(map[string]any)
	all := append(append([]any(nil), l.fields...), args...)
	for i := 0; i+1 < len(all); i += 2 {
		if key, ok := all[i].(string); ok {
			fields[key] = all[i+1]
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, LogEntry{Level: level, Message: msg, Fields: fields})
}
