package blocktimer

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// LoggingHandler writes one informational log record per event to a logger named after the
// event's host. It is the built-in first handler of every Registry.
type LoggingHandler struct {
	base   *zerolog.Logger // nil for the global logger
	prefix string

	loggers *lru.Cache[string, *zerolog.Logger] // Key host to value child logger
	group   singleflight.Group
}

// NewLoggingHandler creates a LoggingHandler deriving per-host loggers from base. At most
// cacheSize loggers are kept, the least recently used is evicted first.
func NewLoggingHandler(base zerolog.Logger, cacheSize int, prefix string) (*LoggingHandler, error) {
	return newLoggingHandler(&base, cacheSize, prefix)
}

// newLoggingHandler creates a LoggingHandler. A nil base writes to the global zerolog logger
// as it is at the time of each event, and per-host loggers are then not cached.
func newLoggingHandler(base *zerolog.Logger, cacheSize int, prefix string) (*LoggingHandler, error) {
	if cacheSize < 1 {
		return nil, invalidArgument("logger cache size must be positive, got %d", cacheSize)
	}
	cache, err := lru.New[string, *zerolog.Logger](cacheSize)
	if err != nil {
		return nil, err
	}
	return &LoggingHandler{
		base:    base,
		prefix:  prefix,
		loggers: cache,
	}, nil
}

// Name implements NamedHandler.
func (h *LoggingHandler) Name() string { return "logging" }

// OnTimerEvent implements TimerHandler. It never returns an error.
func (h *LoggingHandler) OnTimerEvent(event TimerEvent) error {
	if h.base == nil {
		log.Info().
			Str("logger", h.prefix+event.Host()).
			EmbedObject(event).
			Msg(event.String())
		return nil
	}
	h.loggerFor(event.Host()).Info().EmbedObject(event).Msg(event.String())
	return nil
}

// loggerFor returns the cached logger of host, creating it on first use. Concurrent first
// uses of the same host share a single creation.
func (h *LoggingHandler) loggerFor(host string) *zerolog.Logger {
	if logger, ok := h.loggers.Get(host); ok {
		return logger
	}
	v, _, _ := h.group.Do(host, func() (any, error) {
		if logger, ok := h.loggers.Get(host); ok {
			return logger, nil
		}
		logger := h.base.With().Str("logger", h.prefix+host).Logger()
		h.loggers.Add(host, &logger)
		return &logger, nil
	})
	return v.(*zerolog.Logger)
}
