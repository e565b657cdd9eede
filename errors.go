package blocktimer

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a timer or handler is created from invalid input,
	// e.g. an empty host or method, or a nil handler.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrQueueFull is returned by an AsyncHandler when its queue cannot accept another event.
	ErrQueueFull = errors.New("async handler queue full")

	// ErrHandlerClosed is returned by handlers that receive events after being closed.
	ErrHandlerClosed = errors.New("handler closed")
)

// HandlerError describes a handler that failed while receiving a TimerEvent. Handler errors
// are logged and counted by the Registry, they are never returned to the timed code.
type HandlerError struct {
	Handler string // Name of the failing handler
	Panic   bool   // True if the handler panicked rather than returning an error
	Stack   []byte // Goroutine stack at the time of a panic, nil otherwise
	Err     error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	if e.Panic {
		return fmt.Sprintf("timer handler %s panicked: %v", e.Handler, e.Err)
	}
	return fmt.Sprintf("timer handler %s failed: %v", e.Handler, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// invalidArgument wraps ErrInvalidArgument with a description of the offending argument.
func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
