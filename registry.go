package blocktimer

import (
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
)

// handlerSet is an immutable snapshot of custom handlers. A new set is built on every write.
type handlerSet struct {
	handlers []TimerHandler
}

func (s *handlerSet) contains(h TimerHandler) bool {
	for _, existing := range s.handlers {
		if sameHandler(existing, h) {
			return true
		}
	}
	return false
}

// with returns a copy of s with h appended.
func (s *handlerSet) with(h TimerHandler) *handlerSet {
	handlers := make([]TimerHandler, len(s.handlers), len(s.handlers)+1)
	copy(handlers, s.handlers)
	return &handlerSet{handlers: append(handlers, h)}
}

// newHandlerSet builds a snapshot from handlers, dropping duplicates while keeping order.
func newHandlerSet(handlers []TimerHandler) (*handlerSet, error) {
	set := &handlerSet{handlers: make([]TimerHandler, 0, len(handlers))}
	for i, h := range handlers {
		if h == nil {
			return nil, invalidArgument("handler %d is nil", i)
		}
		if !set.contains(h) {
			set.handlers = append(set.handlers, h)
		}
	}
	return set, nil
}

// Stats holds counters of a Registry.
type Stats struct {
	Started       uint64 // Timers started
	Dispatched    uint64 // Events dispatched to handlers
	HandlerFaults uint64 // Handler invocations that returned an error or panicked
}

type registryStats struct {
	started    atomic.Uint64
	dispatched atomic.Uint64
	faults     atomic.Uint64
}

// Registry owns a set of timer handlers and creates timers that report to them. The built-in
// logging handler is always invoked first, followed by the custom handlers in registration
// order.
//
// Handler reads are a single atomic load and never wait for writers. Writers copy the
// current snapshot and swap in a new one, so a dispatch always sees a complete set.
type Registry struct {
	cfg     Config
	logger  *zerolog.Logger // nil for the global logger
	builtin *LoggingHandler
	custom  atomic.Pointer[handlerSet]
	stats   registryStats
}

// NewRegistry creates a Registry. Returns an error wrapping ErrInvalidArgument if the
// resulting Config is invalid.
func NewRegistry(opts ...Option) (*Registry, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	builtin, err := newLoggingHandler(cfg.Logger, cfg.LoggerCacheSize, cfg.LoggerPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create logging handler: %w", err)
	}
	set, err := newHandlerSet(cfg.Handlers)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		cfg:     cfg,
		builtin: builtin,
	}
	if cfg.Logger != nil {
		logger := cfg.Logger.With().Str("component", "blocktimer").Logger()
		r.logger = &logger
	}
	r.custom.Store(set)
	return r, nil
}

// AddHandler appends a custom handler. Events from timers that end after AddHandler returns
// are delivered to it. Adding a handler that is already registered has no effect.
func (r *Registry) AddHandler(h TimerHandler) error {
	if h == nil {
		return invalidArgument("handler is nil")
	}
	for {
		current := r.custom.Load()
		if current.contains(h) {
			return nil
		}
		if r.custom.CompareAndSwap(current, current.with(h)) {
			return nil
		}
	}
}

// SetHandlers replaces all custom handlers. The built-in logging handler is kept.
func (r *Registry) SetHandlers(handlers ...TimerHandler) error {
	set, err := newHandlerSet(handlers)
	if err != nil {
		return err
	}
	r.custom.Store(set)
	return nil
}

// CurrentHandlers returns the built-in logging handler followed by the custom handlers, as
// registered at the time of the call.
func (r *Registry) CurrentHandlers() []TimerHandler {
	custom := r.custom.Load().handlers
	handlers := make([]TimerHandler, 0, len(custom)+1)
	handlers = append(handlers, r.builtin)
	return append(handlers, custom...)
}

// Stats returns a snapshot of the registry counters.
func (r *Registry) Stats() Stats {
	return Stats{
		Started:       r.stats.started.Load(),
		Dispatched:    r.stats.dispatched.Load(),
		HandlerFaults: r.stats.faults.Load(),
	}
}

// dispatch delivers event to the built-in handler and the current custom snapshot.
func (r *Registry) dispatch(event TimerEvent) {
	r.stats.dispatched.Inc()
	r.deliver(r.builtin, event)
	for _, h := range r.custom.Load().handlers {
		r.deliver(h, event)
	}
}

// deliver invokes h, logging and counting any failure.
func (r *Registry) deliver(h TimerHandler, event TimerEvent) {
	err := invokeHandler(h, event)
	if err == nil {
		return
	}
	r.stats.faults.Inc()
	r.faultLogger().Warn().
		Err(err).
		Str("handler", err.Handler).
		Bool("panic", err.Panic).
		Str("timer_id", event.ID().String()).
		Str("host", event.Host()).
		Str("method", event.Method()).
		Msg("Timer handler failed")
}

// faultLogger returns the configured logger, or a child of the current global logger.
func (r *Registry) faultLogger() *zerolog.Logger {
	if r.logger != nil {
		return r.logger
	}
	logger := log.Logger.With().Str("component", "blocktimer").Logger()
	return &logger
}

// invokeHandler calls h, converting a returned error or a panic into a HandlerError.
func invokeHandler(h TimerHandler, event TimerEvent) (herr *HandlerError) {
	defer func() {
		if p := recover(); p != nil {
			err, ok := p.(error)
			if !ok {
				err = fmt.Errorf("%v", p)
			}
			herr = &HandlerError{
				Handler: handlerName(h),
				Panic:   true,
				Stack:   debug.Stack(),
				Err:     err,
			}
		}
	}()
	if err := h.OnTimerEvent(event); err != nil {
		return &HandlerError{Handler: handlerName(h), Err: err}
	}
	return nil
}
