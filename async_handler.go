package blocktimer

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
)

const (
	defaultAsyncWorkers   = 1
	defaultAsyncQueueSize = 256
)

// AsyncHandler decouples a slow handler from the timed code. Events are queued without
// blocking and delivered to the wrapped handler by a pool of workers. When the queue is full
// the event is dropped and ErrQueueFull is returned, which the Registry reports as a fault.
type AsyncHandler struct {
	handler     TimerHandler
	name        string
	workerCount int
	logger      *zerolog.Logger // nil for the global logger

	mu     sync.RWMutex // Guards sends on queue against Close
	closed bool
	queue  chan TimerEvent

	activeWorkers atomic.Int32
	processed     atomic.Uint64
	failed        atomic.Uint64
	dropped       atomic.Uint64

	wg sync.WaitGroup
}

// AsyncStats holds counters of an AsyncHandler.
type AsyncStats struct {
	Processed uint64 // Events delivered to the wrapped handler
	Failed    uint64 // Deliveries that returned an error or panicked
	Dropped   uint64 // Events rejected because the queue was full or the handler closed
}

type asyncConfig struct {
	workers   int
	queueSize int
	logger    *zerolog.Logger
}

// AsyncOption configures an AsyncHandler.
type AsyncOption func(*asyncConfig)

// WithAsyncWorkers sets the number of workers delivering events. Values below 1 are ignored.
func WithAsyncWorkers(n int) AsyncOption {
	return func(c *asyncConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithAsyncQueueSize sets the capacity of the event queue. Values below 1 are ignored.
func WithAsyncQueueSize(n int) AsyncOption {
	return func(c *asyncConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithAsyncLogger sets the logger failures of the wrapped handler are reported to. Defaults
// to the global zerolog logger.
func WithAsyncLogger(logger zerolog.Logger) AsyncOption {
	return func(c *asyncConfig) {
		c.logger = &logger
	}
}

// NewAsyncHandler wraps h and starts its workers. Close must be called to stop them.
func NewAsyncHandler(h TimerHandler, opts ...AsyncOption) (*AsyncHandler, error) {
	if h == nil {
		return nil, invalidArgument("handler is nil")
	}
	cfg := asyncConfig{
		workers:   defaultAsyncWorkers,
		queueSize: defaultAsyncQueueSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	a := &AsyncHandler{
		handler:     h,
		name:        "async(" + handlerName(h) + ")",
		workerCount: cfg.workers,
		logger:      cfg.logger,
		queue:       make(chan TimerEvent, cfg.queueSize),
	}
	a.start()
	return a, nil
}

// Name implements NamedHandler.
func (a *AsyncHandler) Name() string { return a.name }

// OnTimerEvent queues event for delivery. It never blocks.
func (a *AsyncHandler) OnTimerEvent(event TimerEvent) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.dropped.Inc()
		return ErrHandlerClosed
	}
	select {
	case a.queue <- event:
		return nil
	default:
		a.dropped.Inc()
		return ErrQueueFull
	}
}

// ActiveWorkers returns the number of workers currently delivering an event.
func (a *AsyncHandler) ActiveWorkers() int32 {
	return a.activeWorkers.Load()
}

// Stats returns a snapshot of the handler counters.
func (a *AsyncHandler) Stats() AsyncStats {
	return AsyncStats{
		Processed: a.processed.Load(),
		Failed:    a.failed.Load(),
		Dropped:   a.dropped.Load(),
	}
}

// Close stops accepting events, waits for the queued events to be delivered and stops the
// workers. Closing twice is a no-op.
func (a *AsyncHandler) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	a.currentLogger().Debug().Str("handler", a.name).Msg("Waiting for async handler workers to drain")
	a.wg.Wait()
	return nil
}

// currentLogger returns the configured logger or the current global one.
func (a *AsyncHandler) currentLogger() *zerolog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return &log.Logger
}

// start launches the workers.
func (a *AsyncHandler) start() {
	a.wg.Add(a.workerCount)
	for i := 0; i < a.workerCount; i++ {
		go a.worker(i)
	}
}

// worker delivers queued events until the queue is closed and drained.
func (a *AsyncHandler) worker(id int) {
	defer a.wg.Done()

	for event := range a.queue {
		a.activeWorkers.Inc()
		if err := invokeHandler(a.handler, event); err != nil {
			a.failed.Inc()
			a.currentLogger().Error().
				Err(err).
				Int("worker", id).
				Str("handler", err.Handler).
				Str("timer_id", event.ID().String()).
				Msg("Async timer handler failed")
		} else {
			a.processed.Inc()
		}
		a.activeWorkers.Dec()
	}
}
