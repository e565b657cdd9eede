package blocktimer

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultStackDepth is the number of frames captured per timer unless configured.
	DefaultStackDepth = 32
	// MaxStackDepth caps the configurable stack depth.
	MaxStackDepth = 256
	// DefaultLoggerCacheSize is the number of per-host loggers kept by the logging handler.
	DefaultLoggerCacheSize = 1024
	// DefaultLoggerPrefix prefixes the logger name of every host.
	DefaultLoggerPrefix = "TIMER."
)

// Config holds the settings of a Registry. Use the With* options to modify it.
type Config struct {
	// Logger is the parent of the per-host loggers of the built-in logging handler, and the
	// logger handler faults are reported to. When nil, the global zerolog logger is resolved
	// on every record, so reassigning log.Logger after the registry is created takes effect.
	Logger *zerolog.Logger

	// Clock returns the current time. Must return times carrying a monotonic clock reading
	// for durations to be immune to wall clock changes, which time.Now does.
	Clock func() time.Time

	// StackDepth is the maximum number of frames captured when a timer starts.
	// Must be between 1 and MaxStackDepth.
	StackDepth int

	// LoggerCacheSize bounds the number of cached per-host loggers. Must be positive. Loggers
	// are only cached when Logger is set.
	LoggerCacheSize int

	// LoggerPrefix is prepended to the host to form the logger name.
	LoggerPrefix string

	// Handlers is the initial set of custom handlers.
	Handlers []TimerHandler
}

// Validate checks that the Config is usable.
func (c Config) Validate() error {
	var errs []error
	if c.Clock == nil {
		errs = append(errs, errors.New("Config.Clock cannot be nil"))
	}
	if c.StackDepth < 1 || c.StackDepth > MaxStackDepth {
		errs = append(errs, fmt.Errorf("Config.StackDepth must be between 1 and %d, got %d",
			MaxStackDepth, c.StackDepth))
	}
	if c.LoggerCacheSize < 1 {
		errs = append(errs, fmt.Errorf("Config.LoggerCacheSize must be positive, got %d",
			c.LoggerCacheSize))
	}
	for i, h := range c.Handlers {
		if h == nil {
			errs = append(errs, fmt.Errorf("Config.Handlers[%d] is nil", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, errors.Join(errs...))
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Clock:           time.Now,
		StackDepth:      DefaultStackDepth,
		LoggerCacheSize: DefaultLoggerCacheSize,
		LoggerPrefix:    DefaultLoggerPrefix,
	}
}

// Option configures a Registry.
type Option func(*Config)

// WithLogger sets the logger used by the built-in logging handler and for fault reports,
// replacing the global zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = &logger
	}
}

// WithClock replaces the time source, mostly useful in tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

// WithStackDepth sets the maximum number of captured stack frames.
func WithStackDepth(depth int) Option {
	return func(c *Config) {
		c.StackDepth = depth
	}
}

// WithLoggerCacheSize bounds the per-host logger cache of the logging handler.
func WithLoggerCacheSize(size int) Option {
	return func(c *Config) {
		c.LoggerCacheSize = size
	}
}

// WithLoggerPrefix sets the prefix of per-host logger names.
func WithLoggerPrefix(prefix string) Option {
	return func(c *Config) {
		c.LoggerPrefix = prefix
	}
}

// WithHandlers sets the initial custom handlers of the registry.
func WithHandlers(handlers ...TimerHandler) Option {
	return func(c *Config) {
		c.Handlers = append([]TimerHandler(nil), handlers...)
	}
}
