// Package otelhandler forwards timer events to OpenTelemetry.
//
// MetricsHandler records every event in a duration histogram and an event counter.
// TracingHandler turns every event into a span whose start and end timestamps are those of
// the timer, so timed blocks show up in traces without changing the timed code.
//
// Both handlers use the global providers by default. The *With* constructors accept an
// explicit meter or tracer, e.g. for tests.
package otelhandler

// scopeName is the instrumentation scope name of the handlers.
const scopeName = "github.com/jkbrsn/blocktimer"
