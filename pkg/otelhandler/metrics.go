package otelhandler

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jkbrsn/blocktimer"
)

var _ blocktimer.TimerHandler = (*MetricsHandler)(nil)

// MetricsHandler records timer events as OpenTelemetry metrics.
//
// Instruments:
//   - blocktimer.duration (Float64Histogram): timer duration in seconds,
//     with attributes: host, method
//   - blocktimer.events (Int64Counter): completed timers,
//     with attributes: host, method
type MetricsHandler struct {
	duration metric.Float64Histogram
	events   metric.Int64Counter
}

// NewMetrics creates a MetricsHandler using the global MeterProvider.
func NewMetrics() (*MetricsHandler, error) {
	return NewMetricsWithMeter(otel.Meter(scopeName))
}

// NewMetricsWithMeter creates a MetricsHandler using the provided meter.
func NewMetricsWithMeter(meter metric.Meter) (*MetricsHandler, error) {
	duration, dErr := meter.Float64Histogram(
		"blocktimer.duration",
		metric.WithDescription("Duration of timed blocks in seconds"),
		metric.WithUnit("s"),
	)
	events, eErr := meter.Int64Counter(
		"blocktimer.events",
		metric.WithDescription("Total number of completed timers"),
		metric.WithUnit("{event}"),
	)
	if err := errors.Join(dErr, eErr); err != nil {
		return nil, err
	}
	return &MetricsHandler{duration: duration, events: events}, nil
}

// Name implements blocktimer.NamedHandler.
func (h *MetricsHandler) Name() string { return "otel-metrics" }

// OnTimerEvent implements blocktimer.TimerHandler.
func (h *MetricsHandler) OnTimerEvent(event blocktimer.TimerEvent) error {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("host", event.Host()),
		attribute.String("method", event.Method()),
	)
	h.duration.Record(ctx, event.Duration().Seconds(), attrs)
	h.events.Add(ctx, 1, attrs)
	return nil
}
