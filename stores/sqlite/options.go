package sqlite

import (
	"time"

	"github.com/jilio/statesync"
)

// Logger receives store diagnostics. *slog.Logger satisfies it.
type Logger = statesync.Logger

// MetricsHook observes snapshot reads and writes. OnLoad reports found=false
// for a state that has never been saved.
type MetricsHook interface {
	OnSave(duration time.Duration, err error)
	OnLoad(duration time.Duration, found bool, err error)
	OnDelete(duration time.Duration, err error)
}

// Option configures a SQLiteStore.
type Option func(*config)

type config struct {
	path        string
	busyTimeout time.Duration
	autoMigrate bool
	logger      Logger
	metricsHook MetricsHook
}

const defaultBusyTimeout = 5 * time.Second

func defaultConfig() *config {
	return &config{
		busyTimeout: defaultBusyTimeout,
		autoMigrate: true,
	}
}

// WithBusyTimeout sets how long a snapshot write waits for another
// connection's lock on the database file before failing with SQLITE_BUSY.
// Non-positive values keep the 5 second default.
func WithBusyTimeout(timeout time.Duration) Option {
	return func(c *config) {
		if timeout > 0 {
			c.busyTimeout = timeout
		}
	}
}

// WithAutoMigrate controls whether New creates the state_snapshots table.
// Disable it when the schema is managed elsewhere; New then fails if the
// table is missing.
func WithAutoMigrate(enabled bool) Option {
	return func(c *config) {
		c.autoMigrate = enabled
	}
}

// WithLogger logs snapshot saves and loads at debug level and failures at
// error level.
func WithLogger(logger Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetricsHook reports the duration and outcome of every snapshot
// operation.
func WithMetricsHook(hook MetricsHook) Option {
	return func(c *config) {
		c.metricsHook = hook
	}
}
