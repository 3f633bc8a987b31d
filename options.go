package statesync

import (
	"context"
	"log/slog"
	"time"
)

// Logger is an interface for logging operations. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Observability receives hooks around evaluation passes and handler calls.
// The otel package provides an OpenTelemetry implementation.
type Observability interface {
	// OnSyncStart is called before a pass over a binding table. reason is
	// one of "now", "trigger" or "notify".
	OnSyncStart(ctx context.Context, reason string, entityKind string) context.Context
	// OnSyncComplete is called when the pass returns
	OnSyncComplete(ctx context.Context, duration time.Duration, err error)
	// OnHandlerStart is called before a single handler runs
	OnHandlerStart(ctx context.Context, event string, handler string) context.Context
	// OnHandlerComplete is called when the handler returns
	OnHandlerComplete(ctx context.Context, duration time.Duration, err error)
}

// SyncOption configures a syncing session
type SyncOption func(*syncConfig)

type syncConfig struct {
	logger        Logger
	observability Observability
}

func defaultSyncConfig() *syncConfig {
	return &syncConfig{
		logger: slog.New(slog.DiscardHandler),
	}
}

// WithLogger sets the logger used by the session
func WithLogger(logger Logger) SyncOption {
	return func(c *syncConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObservability enables hooks for evaluation passes and handler calls
func WithObservability(obs Observability) SyncOption {
	return func(c *syncConfig) {
		c.observability = obs
	}
}
