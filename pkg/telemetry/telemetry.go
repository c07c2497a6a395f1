// Package telemetry defines the logging, metrics, and tracing seams used
// throughout the runtime, generalized from the teacher's global-singleton
// services (logger, meter, tracer) into explicit values carried on a
// PlatformServices-style context (spec.md §9, "Global/singleton services").
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger emits structured log messages at increasing severities. Every
// method accepts a context so implementations can attach trace/span
// correlation or request-scoped fields.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics records counters, timers, and gauges.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, d time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer creates spans for tracking execution across planning ticks,
// action invocations, and LLM calls.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
}

// Span is a single unit of traced work.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, keyvals ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// Services bundles the three telemetry seams, the explicit replacement for the teacher's ambient global singletons
// (spec.md §9).
type Services struct {
	Logger  Logger
	Metrics Metrics
	Tracer  Tracer
}

// NewNoop returns a Services value wired entirely to no-op implementations,
// suitable for tests and for agents that do not need observability.
func NewNoop() Services {
	return Services{
		Logger:  NoopLogger{},
		Metrics: NoopMetrics{},
		Tracer:  NoopTracer{},
	}
}
