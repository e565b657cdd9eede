package blocktimer

import (
	"time"

	"github.com/rs/xid"
	"go.uber.org/atomic"
)

// processEpoch anchors monotonic timestamps. It carries Go's monotonic clock reading, so
// differences against it are immune to wall clock adjustments.
var processEpoch = time.Now()

// Nanotime returns monotonic nanoseconds elapsed since the package was initialized. Timer
// start and end timestamps are on the same scale.
func Nanotime() int64 {
	return int64(time.Since(processEpoch))
}

// Timer measures one execution of a block of code. It is created by Registry.Start (or the
// package-level Time) and must be ended exactly once, typically with defer:
//
//	t, err := blocktimer.Time("store", "Get", key)
//	if err != nil {
//		return err
//	}
//	defer t.End()
//
// All fields are immutable after creation.
type Timer struct {
	registry *Registry

	id         xid.ID
	host       string
	method     string
	operation  any
	startWall  time.Time
	startNanos int64
	stack      Stack

	ended atomic.Bool
}

// ID returns the correlation ID of the timer.
func (t *Timer) ID() xid.ID { return t.id }

// Host returns the host identifier.
func (t *Timer) Host() string { return t.host }

// Method returns the method name.
func (t *Timer) Method() string { return t.method }

// Operation returns the operation tag, which may be nil.
func (t *Timer) Operation() any { return t.operation }

// StartTime returns the wall clock time at which the timer started.
func (t *Timer) StartTime() time.Time { return t.startWall }

// StartNanos returns the monotonic start timestamp.
func (t *Timer) StartNanos() int64 { return t.startNanos }

// Stack returns the call stack captured at start.
func (t *Timer) Stack() Stack { return t.stack }

// Elapsed returns the time elapsed since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Duration(t.registry.nanotime() - t.startNanos)
}

// Ended reports whether End has been called.
func (t *Timer) Ended() bool { return t.ended.Load() }

// End stops the timer and delivers a TimerEvent to every handler of the owning registry.
// Only the first call has an effect, subsequent calls return immediately.
func (t *Timer) End() {
	if !t.ended.CompareAndSwap(false, true) {
		return
	}
	end := t.registry.nanotime()
	t.registry.dispatch(newTimerEvent(t, end))
}

// Equal reports whether both timers share host, method, stack and start timestamps.
func (t *Timer) Equal(other *Timer) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil {
		return false
	}
	return t.host == other.host &&
		t.method == other.method &&
		t.startNanos == other.startNanos &&
		t.startWall.Equal(other.startWall) &&
		t.stack.Equal(other.stack)
}

// Start creates a running Timer for the given host and method. The operation tag is opaque
// and may be nil. Returns ErrInvalidArgument if host or method is empty.
func (r *Registry) Start(host, method string, operation any) (*Timer, error) {
	return r.start(1, host, method, operation)
}

// Measure times fn as method of host. The timer ends on every exit path of fn, including a
// panic, which is re-raised after the event has been dispatched. The error of fn is returned
// unchanged.
func (r *Registry) Measure(host, method string, operation any, fn func() error) error {
	return r.measure(1, host, method, operation, fn)
}

func (r *Registry) measure(skip int, host, method string, operation any, fn func() error) error {
	if fn == nil {
		return invalidArgument("nil function")
	}
	t, err := r.start(skip+1, host, method, operation)
	if err != nil {
		return err
	}
	defer t.End()
	return fn()
}

// start creates a Timer. skip is the number of frames above start that are excluded from
// the captured stack.
func (r *Registry) start(skip int, host, method string, operation any) (*Timer, error) {
	if host == "" {
		return nil, invalidArgument("host is empty")
	}
	if method == "" {
		return nil, invalidArgument("method is empty")
	}

	stack := captureStack(skip+1, r.cfg.StackDepth)
	now := r.cfg.Clock()
	t := &Timer{
		registry:   r,
		id:         xid.New(),
		host:       host,
		method:     method,
		operation:  operation,
		startWall:  now.Round(0),
		startNanos: int64(now.Sub(processEpoch)),
		stack:      stack,
	}
	r.stats.started.Inc()
	return t, nil
}

// nanotime returns the monotonic timestamp of the registry's clock.
func (r *Registry) nanotime() int64 {
	return int64(r.cfg.Clock().Sub(processEpoch))
}
