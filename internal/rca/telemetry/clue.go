package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

// ClueLogger delegates to goa.design/clue/log. Formatting and debug settings
// are read from the context via log.Context.
type ClueLogger struct{}

// NewClueLogger constructs a Logger backed by goa.design/clue/log.
func NewClueLogger() Logger { return ClueLogger{} }

func (ClueLogger) Debug(ctx context.Context, msg string, kvs ...KV) {
	log.Debug(ctx, fielders(msg, kvs)...)
}

func (ClueLogger) Info(ctx context.Context, msg string, kvs ...KV) {
	log.Info(ctx, fielders(msg, kvs)...)
}

func (ClueLogger) Warn(ctx context.Context, msg string, kvs ...KV) {
	log.Warn(ctx, fielders(msg, kvs)...)
}

func (ClueLogger) Error(ctx context.Context, msg string, err error, kvs ...KV) {
	log.Error(ctx, err, fielders(msg, kvs)...)
}

func fielders(msg string, kvs []KV) []log.Fielder {
	out := make([]log.Fielder, 0, len(kvs)+1)
	out = append(out, log.KV{K: "msg", V: msg})
	for _, kv := range kvs {
		out = append(out, log.KV{K: kv.Key, V: kv.Value})
	}
	return out
}

// ClueMetrics records OTEL metrics through the global MeterProvider,
// configured at process startup via clue.ConfigureOpenTelemetry.
type ClueMetrics struct {
	meter metric.Meter
}

// NewClueMetrics constructs a Metrics recorder under the given
// instrumentation scope name.
func NewClueMetrics(scope string) Metrics {
	return &ClueMetrics{meter: otel.Meter(scope)}
}

func (m *ClueMetrics) IncCounter(name string, tags ...KV) {
	counter, err := m.meter.Float64Counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), 1, metric.WithAttributes(attrsOf(tags)...))
}

func (m *ClueMetrics) RecordTimer(name string, seconds float64, tags ...KV) {
	hist, err := m.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	hist.Record(context.Background(), seconds, metric.WithAttributes(attrsOf(tags)...))
}

func (m *ClueMetrics) RecordGauge(name string, value float64, tags ...KV) {
	hist, err := m.meter.Float64Histogram(name + "_gauge")
	if err != nil {
		return
	}
	hist.Record(context.Background(), value, metric.WithAttributes(attrsOf(tags)...))
}

func attrsOf(kvs []KV) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(kvs))
	for _, kv := range kvs {
		switch v := kv.Value.(type) {
		case string:
			out = append(out, attribute.String(kv.Key, v))
		case int:
			out = append(out, attribute.Int(kv.Key, v))
		case int64:
			out = append(out, attribute.Int64(kv.Key, v))
		case float64:
			out = append(out, attribute.Float64(kv.Key, v))
		case bool:
			out = append(out, attribute.Bool(kv.Key, v))
		default:
			out = append(out, attribute.String(kv.Key, ""))
		}
	}
	return out
}

// ClueTracer delegates to OTEL tracing through the global TracerProvider.
type ClueTracer struct {
	tracer trace.Tracer
}

// NewClueTracer constructs a Tracer under the given instrumentation scope
// name.
func NewClueTracer(scope string) Tracer {
	return &ClueTracer{tracer: otel.Tracer(scope)}
}

func (t *ClueTracer) Start(ctx context.Context, operation string, kvs ...KV) (context.Context, Span) {
	newCtx, span := t.tracer.Start(ctx, operation, trace.WithAttributes(attrsOf(kvs)...))
	return newCtx, &clueSpan{span: span}
}

type clueSpan struct {
	span trace.Span
}

func (s *clueSpan) AddEvent(name string, kvs ...KV) {
	s.span.AddEvent(name, trace.WithAttributes(attrsOf(kvs)...))
}

func (s *clueSpan) SetStatus(err error) {
	if err != nil {
		s.span.SetStatus(codes.Error, err.Error())
		s.span.RecordError(err)
		return
	}
	s.span.SetStatus(codes.Ok, "")
}

func (s *clueSpan) End() { s.span.End() }
