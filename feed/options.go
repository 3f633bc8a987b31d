package feed

import (
	"log/slog"
	"time"

	"github.com/jilio/statesync"
)

// ChangeOption configures a change message.
type ChangeOption func(*changeConfig)

type changeConfig struct {
	txID          string
	timestamp     *time.Time
	autoTimestamp bool
}

// WithTxID sets the transaction ID for grouping related changes.
func WithTxID(txID string) ChangeOption {
	return func(c *changeConfig) {
		c.txID = txID
	}
}

// WithTimestamp sets an explicit timestamp, formatted as RFC 3339.
func WithTimestamp(t time.Time) ChangeOption {
	return func(c *changeConfig) {
		c.timestamp = &t
	}
}

// WithAutoTimestamp sets the timestamp to the current time.
func WithAutoTimestamp() ChangeOption {
	return func(c *changeConfig) {
		c.autoTimestamp = true
	}
}

// MaterializerOption configures a Materializer.
type MaterializerOption func(*materializerConfig)

type materializerConfig struct {
	keyAttribute string
	onReset      func()
	onSnapshot   func(start bool)
	onError      func(error)
	strictSchema bool
	maxLineSize  int
	logger       statesync.Logger
}

// DefaultMaxLineSize is the longest NDJSON line Replay accepts by default.
const DefaultMaxLineSize = 4 << 20

func defaultMaterializerConfig() *materializerConfig {
	return &materializerConfig{
		keyAttribute: "id",
		maxLineSize:  DefaultMaxLineSize,
		logger:       slog.New(slog.DiscardHandler),
	}
}

// WithKeyAttribute sets the model attribute holding the record key.
// Default is "id".
func WithKeyAttribute(name string) MaterializerOption {
	return func(c *materializerConfig) {
		c.keyAttribute = name
	}
}

// WithOnReset sets a callback invoked after a reset emptied the collections.
func WithOnReset(fn func()) MaterializerOption {
	return func(c *materializerConfig) {
		c.onReset = fn
	}
}

// WithOnSnapshot sets a callback invoked on snapshot-start (true) and
// snapshot-end (false).
func WithOnSnapshot(fn func(start bool)) MaterializerOption {
	return func(c *materializerConfig) {
		c.onSnapshot = fn
	}
}

// WithOnError sets a handler called when applying a change fails.
func WithOnError(fn func(error)) MaterializerOption {
	return func(c *materializerConfig) {
		c.onError = fn
	}
}

// WithStrictSchema makes changes for unregistered entity types an error.
// By default they are ignored.
func WithStrictSchema() MaterializerOption {
	return func(c *materializerConfig) {
		c.strictSchema = true
	}
}

// WithMaxLineSize sets the longest line, in bytes, Replay reads before
// failing with bufio.ErrTooLong. Default is DefaultMaxLineSize.
func WithMaxLineSize(n int) MaterializerOption {
	return func(c *materializerConfig) {
		if n > 0 {
			c.maxLineSize = n
		}
	}
}

// WithLogger sets the materializer logger.
func WithLogger(logger statesync.Logger) MaterializerOption {
	return func(c *materializerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}
