package otelhandler

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkbrsn/blocktimer"
)

var _ blocktimer.TimerHandler = (*TracingHandler)(nil)

// TracingHandler records each timer event as a span named "host.method".
//
// Span attributes include: blocktimer.timer_id, blocktimer.host, blocktimer.method,
// blocktimer.duration_ns and, when set, blocktimer.operation.
type TracingHandler struct {
	tracer trace.Tracer
}

// NewTracing creates a TracingHandler using the global TracerProvider.
func NewTracing() *TracingHandler {
	return NewTracingWithTracer(otel.Tracer(scopeName))
}

// NewTracingWithTracer creates a TracingHandler using the provided tracer.
func NewTracingWithTracer(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{tracer: tracer}
}

// Name implements blocktimer.NamedHandler.
func (h *TracingHandler) Name() string { return "otel-tracing" }

// OnTimerEvent implements blocktimer.TimerHandler.
func (h *TracingHandler) OnTimerEvent(event blocktimer.TimerEvent) error {
	attrs := []attribute.KeyValue{
		attribute.String("blocktimer.timer_id", event.ID().String()),
		attribute.String("blocktimer.host", event.Host()),
		attribute.String("blocktimer.method", event.Method()),
		attribute.Int64("blocktimer.duration_ns", event.DurationNanos()),
	}
	if op := event.Operation(); op != nil {
		attrs = append(attrs, attribute.String("blocktimer.operation", fmt.Sprint(op)))
	}

	_, span := h.tracer.Start(context.Background(), event.Host()+"."+event.Method(),
		trace.WithTimestamp(event.StartTime()),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.End(trace.WithTimestamp(event.EndTime()))
	return nil
}
