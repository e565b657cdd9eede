// Package promhandler exports timer events as Prometheus metrics.
package promhandler

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jkbrsn/blocktimer"
)

var _ blocktimer.TimerHandler = (*Handler)(nil)

// Handler records the duration of every timer event in a histogram and counts events,
// both labeled by host and method.
type Handler struct {
	duration *prometheus.HistogramVec
	events   *prometheus.CounterVec
}

type config struct {
	namespace   string
	buckets     []float64
	constLabels prometheus.Labels
}

// Option configures a Handler.
type Option func(*config)

// WithNamespace sets the metric namespace, "blocktimer" by default.
func WithNamespace(namespace string) Option {
	return func(c *config) {
		c.namespace = namespace
	}
}

// WithBuckets sets the histogram buckets in seconds, prometheus.DefBuckets by default.
func WithBuckets(buckets []float64) Option {
	return func(c *config) {
		c.buckets = buckets
	}
}

// WithConstLabels adds constant labels to both metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *config) {
		c.constLabels = labels
	}
}

// New creates a Handler and registers its collectors with reg, or with the default registerer
// if reg is nil. Collectors already registered by an equal Handler are reused.
func New(reg prometheus.Registerer, opts ...Option) (*Handler, error) {
	cfg := config{
		namespace: "blocktimer",
		buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   cfg.namespace,
			Name:        "timer_duration_seconds",
			Help:        "Duration of timed blocks in seconds",
			Buckets:     cfg.buckets,
			ConstLabels: cfg.constLabels,
		},
		[]string{"host", "method"},
	)
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   cfg.namespace,
			Name:        "timer_events_total",
			Help:        "Total number of completed timers",
			ConstLabels: cfg.constLabels,
		},
		[]string{"host", "method"},
	)

	var err error
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if events, err = register(reg, events); err != nil {
		return nil, err
	}
	return &Handler{duration: duration, events: events}, nil
}

// register registers c with reg, returning the existing collector if an identical one is
// already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("failed to register collector: %w", err)
	}
	return c, nil
}

// Name implements blocktimer.NamedHandler.
func (h *Handler) Name() string { return "prometheus" }

// OnTimerEvent implements blocktimer.TimerHandler.
func (h *Handler) OnTimerEvent(event blocktimer.TimerEvent) error {
	labels := prometheus.Labels{"host": event.Host(), "method": event.Method()}
	h.duration.With(labels).Observe(event.Duration().Seconds())
	h.events.With(labels).Inc()
	return nil
}
