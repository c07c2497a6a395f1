package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

type (
	// ClueLogger delegates to goa.design/clue/log for structured logging.
	ClueLogger struct{}

	// ClueMetrics delegates to an OTEL meter.
	ClueMetrics struct {
		meter  metric.Meter
		ints   map[string]metric.Float64Counter
		floats map[string]metric.Float64Gauge
	}

	// ClueTracer delegates to an OTEL tracer.
	ClueTracer struct {
		tracer trace.Tracer
	}

	clueSpan struct {
		span trace.Span
	}
)

// NewClueLogger constructs a Logger backed by goa.design/clue/log. Format
// and debug settings are read from the context via log.Context.
func NewClueLogger() Logger { return ClueLogger{} }

// NewClueTracer constructs a Tracer backed by the global OTEL
// TracerProvider, scoped to the agent-core instrumentation name.
func NewClueTracer() Tracer {
	return ClueTracer{tracer: otel.Tracer("github.com/embabel/agent-core-go")}
}

// NewClueMetrics constructs a Metrics recorder backed by the global OTEL
// MeterProvider.
func NewClueMetrics() Metrics {
	return &ClueMetrics{
		meter:  otel.Meter("github.com/embabel/agent-core-go"),
		ints:   make(map[string]metric.Float64Counter),
		floats: make(map[string]metric.Float64Gauge),
	}
}

// Debug emits a debug-level structured log entry.
func (ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, fielders(msg, keyvals)...)
}

// Info emits an info-level structured log entry.
func (ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, fielders(msg, keyvals)...)
}

// Warn emits a warning-level structured log entry.
func (ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	log.Warn(ctx, fielders(msg, keyvals)...)
}

// Error emits an error-level structured log entry.
func (ClueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, nil, fielders(msg, keyvals)...)
}

func fielders(msg string, keyvals []any) []log.Fielder {
	out := make([]log.Fielder, 0, 1+len(keyvals)/2)
	out = append(out, log.KV{K: "msg", V: msg})
	for i := 0; i+1 < len(keyvals); i += 2 {
		k, _ := keyvals[i].(string)
		out = append(out, log.KV{K: k, V: keyvals[i+1]})
	}
	return out
}

// IncCounter increments (or creates, on first use) a named OTEL counter.
func (m *ClueMetrics) IncCounter(name string, value float64, tags ...string) {
	c, ok := m.ints[name]
	if !ok {
		var err error
		c, err = m.meter.Float64Counter(name)
		if err != nil {
			return
		}
		m.ints[name] = c
	}
	c.Add(context.Background(), value, metric.WithAttributes(attrsFromTags(tags)...))
}

// RecordTimer records a duration as a gauge in milliseconds.
func (m *ClueMetrics) RecordTimer(name string, d time.Duration, tags ...string) {
	m.RecordGauge(name, float64(d.Milliseconds()), tags...)
}

// RecordGauge records a named gauge observation.
func (m *ClueMetrics) RecordGauge(name string, value float64, tags ...string) {
	g, ok := m.floats[name]
	if !ok {
		var err error
		g, err = m.meter.Float64Gauge(name)
		if err != nil {
			return
		}
		m.floats[name] = g
	}
	g.Record(context.Background(), value, metric.WithAttributes(attrsFromTags(tags)...))
}

// Start begins a new span named name as a child of any span in ctx.
func (t ClueTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	c, span := t.tracer.Start(ctx, name, opts...)
	return c, clueSpan{span: span}
}

func (s clueSpan) End(opts ...trace.SpanEndOption) { s.span.End(opts...) }

func (s clueSpan) AddEvent(name string, keyvals ...any) {
	s.span.AddEvent(name)
	_ = keyvals
}

func (s clueSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

func (s clueSpan) RecordError(err error, opts ...trace.EventOption) {
	s.span.RecordError(err, opts...)
}
