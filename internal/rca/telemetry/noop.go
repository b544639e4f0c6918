package telemetry

import "context"

// NoopLogger discards every log message. Used by tests and CLI tools that
// don't configure Clue.
type NoopLogger struct{}

func NewNoopLogger() Logger { return NoopLogger{} }

func (NoopLogger) Debug(context.Context, string, ...KV)        {}
func (NoopLogger) Info(context.Context, string, ...KV)         {}
func (NoopLogger) Warn(context.Context, string, ...KV)         {}
func (NoopLogger) Error(context.Context, string, error, ...KV) {}

// NoopMetrics discards every metric.
type NoopMetrics struct{}

func NewNoopMetrics() Metrics { return NoopMetrics{} }

func (NoopMetrics) IncCounter(string, ...KV)          {}
func (NoopMetrics) RecordTimer(string, float64, ...KV) {}
func (NoopMetrics) RecordGauge(string, float64, ...KV) {}

// NoopTracer creates spans that do nothing.
type NoopTracer struct{}

func NewNoopTracer() Tracer { return NoopTracer{} }

func (NoopTracer) Start(ctx context.Context, _ string, _ ...KV) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) AddEvent(string, ...KV) {}
func (noopSpan) SetStatus(error)        {}
func (noopSpan) End()                   {}
