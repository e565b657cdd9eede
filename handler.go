package blocktimer

import (
	"fmt"
	"reflect"
	"runtime"
)

// TimerHandler is a pluggable observer for completed timers. Handlers run synchronously on
// the goroutine that ends the timer, so implementations must be fast or wrap themselves in
// an AsyncHandler. A returned error or a panic is logged by the Registry and never reaches
// the timed code.
type TimerHandler interface {
	OnTimerEvent(TimerEvent) error
}

// TimerHandlerFunc adapts a function to the TimerHandler interface.
type TimerHandlerFunc func(TimerEvent) error

// OnTimerEvent calls f(event).
func (f TimerHandlerFunc) OnTimerEvent(event TimerEvent) error {
	return f(event)
}

// NamedHandler is implemented by handlers that provide a name for log records.
type NamedHandler interface {
	Name() string
}

// handlerName returns a human readable name of h.
func handlerName(h TimerHandler) string {
	switch typed := h.(type) {
	case NamedHandler:
		return typed.Name()
	case TimerHandlerFunc:
		if fn := runtime.FuncForPC(reflect.ValueOf(typed).Pointer()); fn != nil {
			return fn.Name()
		}
	}
	return fmt.Sprintf("%T", h)
}

// sameHandler reports whether a and b are the same comparable handler value. Handlers that
// cannot be compared, such as functions, are never considered the same.
func sameHandler(a, b TimerHandler) (same bool) {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	// Comparable structs can still hold incomparable values in interface fields
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
