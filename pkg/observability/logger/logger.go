package logger

import (
	"context"
)

// Logger defines the interface for structured logging throughout recordbench.
// All log methods accept a message string followed by key-value pairs for structured fields.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs
	Debug(msg string, args ...any)

	// Info logs an info-level message with optional key-value pairs
	Info(msg string, args ...any)

	// Warn logs a warning-level message with optional key-value pairs
	Warn(msg string, args ...any)

	// Error logs an error-level message with optional key-value pairs
	Error(msg string, args ...any)

	// With creates a child logger with additional key-value pairs that will be
	// included in all subsequent log entries
	With(args ...any) Logger

	// WithContext creates a child logger carrying the run and worker
	// identifiers stored in ctx, if any.
	WithContext(ctx context.Context) Logger
}

type contextKey string

const (
	runIDKey    contextKey = "run_id"
	workerIDKey contextKey = "worker_id"
)

// ContextWithRunID returns a copy of ctx carrying the benchmark run identifier.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// ContextWithWorker returns a copy of ctx carrying the worker index.
func ContextWithWorker(ctx context.Context, worker int) context.Context {
	return context.WithValue(ctx, workerIDKey, worker)
}

// contextFields extracts the logging fields stored in ctx.
func contextFields(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	var fields []any
	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		fields = append(fields, string(runIDKey), runID)
	}
	if worker, ok := ctx.Value(workerIDKey).(int); ok {
		fields = append(fields, string(workerIDKey), worker)
	}
	return fields
}

// Nop discards every entry.
type Nop struct{}

// NewNop returns a logger that discards everything.
func NewNop() Logger { return Nop{} }

func (Nop) Debug(string, ...any)                 {}
func (Nop) Info(string, ...any)                  {}
func (Nop) Warn(string, ...any)                  {}
func (Nop) Error(string, ...any)                 {}
func (n Nop) With(...any) Logger                 { return n }
func (n Nop) WithContext(context.Context) Logger { return n }
