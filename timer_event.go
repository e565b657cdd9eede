package blocktimer

import (
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// TimerEvent is the immutable result of a completed Timer. It is passed by value to every
// registered TimerHandler.
type TimerEvent struct {
	id        xid.ID
	host      string
	method    string
	operation any
	startWall time.Time
	start     int64 // monotonic nanoseconds, see Nanotime
	end       int64 // monotonic nanoseconds, see Nanotime
	stack     Stack
}

func newTimerEvent(t *Timer, endNanos int64) TimerEvent {
	return TimerEvent{
		id:        t.id,
		host:      t.host,
		method:    t.method,
		operation: t.operation,
		startWall: t.startWall,
		start:     t.startNanos,
		end:       endNanos,
		stack:     t.stack,
	}
}

// ID returns the correlation ID shared by the timer and its event.
func (e TimerEvent) ID() xid.ID { return e.id }

// Host returns the identifier of the type or module the operation was timed for.
func (e TimerEvent) Host() string { return e.host }

// Method returns the name of the timed operation.
func (e TimerEvent) Method() string { return e.method }

// Operation returns the caller-supplied operation tag, which may be nil.
func (e TimerEvent) Operation() any { return e.operation }

// StartTime returns the wall clock time at which the timer was started.
func (e TimerEvent) StartTime() time.Time { return e.startWall }

// EndTime returns the wall clock time at which the timer ended, derived from the start time
// and the monotonic duration.
func (e TimerEvent) EndTime() time.Time { return e.startWall.Add(e.Duration()) }

// StartNanos returns the monotonic timestamp taken when the timer started.
func (e TimerEvent) StartNanos() int64 { return e.start }

// EndNanos returns the monotonic timestamp taken when the timer ended.
func (e TimerEvent) EndNanos() int64 { return e.end }

// DurationNanos returns EndNanos - StartNanos.
func (e TimerEvent) DurationNanos() int64 { return e.end - e.start }

// Duration returns the measured duration.
func (e TimerEvent) Duration() time.Duration { return time.Duration(e.DurationNanos()) }

// Stack returns the call stack captured when the timer started.
func (e TimerEvent) Stack() Stack { return e.stack }

// Equal reports whether two events describe the same timer: host, method, stack and both
// start timestamps must match. The end timestamp and operation are not compared.
func (e TimerEvent) Equal(other TimerEvent) bool {
	return e.host == other.host &&
		e.method == other.method &&
		e.start == other.start &&
		e.startWall.Equal(other.startWall) &&
		e.stack.Equal(other.stack)
}

// String renders the event as "host.method(operation) took duration [id]".
func (e TimerEvent) String() string {
	return fmt.Sprintf("%s.%s(%v) took %s [%s]", e.host, e.method, e.operation, e.Duration(), e.id)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e TimerEvent) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("timer_id", e.id.String()).
		Str("host", e.host).
		Str("method", e.method).
		Interface("operation", e.operation).
		Time("start", e.startWall).
		Int64("duration_ns", e.DurationNanos())
}
