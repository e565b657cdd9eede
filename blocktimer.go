// Package blocktimer measures the duration of blocks of code and reports each measurement
// to a set of pluggable handlers.
//
// A Timer is started for a host (the type or module doing the work), a method and an
// optional operation tag, and is ended when the block exits:
//
//	t, err := blocktimer.Time(blocktimer.HostOf(s), "Get", key)
//	if err != nil {
//		return err
//	}
//	defer t.End()
//
// Ending a timer builds a TimerEvent and hands it synchronously to the registry's handlers:
// first the built-in LoggingHandler, then every custom handler. Handler failures are logged
// and never affect the timed code.
//
// Handlers live in a Registry. The package-level functions use a process-wide default
// registry, while libraries and tests can create their own with NewRegistry.
package blocktimer

import (
	"reflect"

	"go.uber.org/atomic"
)

var defaultRegistry atomic.Pointer[Registry]

func init() {
	r, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	defaultRegistry.Store(r)
}

// Default returns the process-wide registry used by the package-level functions.
func Default() *Registry {
	return defaultRegistry.Load()
}

// SetDefault replaces the process-wide registry. Timers already started keep reporting to
// the registry that created them.
func SetDefault(r *Registry) error {
	if r == nil {
		return invalidArgument("registry is nil")
	}
	defaultRegistry.Store(r)
	return nil
}

// Time starts a Timer on the default registry.
func Time(host, method string, operation any) (*Timer, error) {
	return Default().start(1, host, method, operation)
}

// Measure times fn on the default registry, see Registry.Measure.
func Measure(host, method string, operation any, fn func() error) error {
	return Default().measure(1, host, method, operation, fn)
}

// AddTimerHandler adds a custom handler to the default registry.
func AddTimerHandler(h TimerHandler) error {
	return Default().AddHandler(h)
}

// SetTimerHandlers replaces the custom handlers of the default registry.
func SetTimerHandlers(handlers ...TimerHandler) error {
	return Default().SetHandlers(handlers...)
}

// HostOf returns a host identifier for v derived from its dynamic type, e.g. "*store.Cache".
// Returns an empty string for a nil v.
func HostOf(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	return t.String()
}
