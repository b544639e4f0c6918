// Package telemetry defines the small logging/metrics/tracing interfaces
// used throughout the orchestration core. Concrete implementations live in
// this package (Clue/OTEL-backed) and in tests (no-op fakes).
package telemetry

import "context"

// KV is a single structured logging field.
type KV struct {
	Key   string
	Value any
}

// Str builds a string-valued KV.
func Str(key, value string) KV { return KV{Key: key, Value: value} }

// Logger is a context-scoped structured logger.
type Logger interface {
	Debug(ctx context.Context, msg string, kvs ...KV)
	Info(ctx context.Context, msg string, kvs ...KV)
	Warn(ctx context.Context, msg string, kvs ...KV)
	Error(ctx context.Context, msg string, err error, kvs ...KV)
}

// Metrics records counters, timers, and gauges.
type Metrics interface {
	IncCounter(name string, tags ...KV)
	RecordTimer(name string, seconds float64, tags ...KV)
	RecordGauge(name string, value float64, tags ...KV)
}

// Span is an in-flight trace span.
type Span interface {
	AddEvent(name string, kvs ...KV)
	SetStatus(err error)
	End()
}

// Tracer starts spans for a named operation.
type Tracer interface {
	Start(ctx context.Context, operation string, kvs ...KV) (context.Context, Span)
}
