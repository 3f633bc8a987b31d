package main

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Config is read from the environment.
type Config struct {
	// DB is the SQLite file holding state snapshots. Empty keeps state in memory.
	DB       string `env:"SYNCDEMO_DB"`
	StateID  string `env:"SYNCDEMO_STATE_ID" envDefault:"syncdemo"`
	Trace    bool   `env:"SYNCDEMO_TRACE" envDefault:"false"`
	LogLevel string `env:"SYNCDEMO_LOG_LEVEL" envDefault:"warn"`
}

// LoadConfig parses Config from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
