// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime settings for the chat server.
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	MongoURI string `envconfig:"MONGODB_URI" required:"true"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Rate limiting applies to message-bearing events, per connection.
	RateLimitRPM   int `envconfig:"RATE_LIMIT_RPM" default:"120"`
	RateLimitBurst int `envconfig:"RATE_LIMIT_BURST" default:"8"`

	// HistoryLimit caps the number of public messages served by /history.
	HistoryLimit int64 `envconfig:"HISTORY_LIMIT" default:"200"`

	// SendBuffer is the per-connection outbound queue size. A client that
	// cannot drain its queue is disconnected rather than blocking the relay.
	SendBuffer int `envconfig:"SEND_BUFFER" default:"64"`

	// StatsTokenSecret guards /stats when set; empty leaves /stats open.
	StatsTokenSecret string        `envconfig:"STATS_TOKEN_SECRET"`
	StatsTokenTTL    time.Duration `envconfig:"STATS_TOKEN_TTL" default:"720h"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads configuration from the environment, honoring a .env file in
// development if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.SendBuffer <= 0 {
		return nil, fmt.Errorf("SEND_BUFFER must be positive, got %d", cfg.SendBuffer)
	}
	return &cfg, nil
}

// SlogLevel maps the configured level name onto a slog level, defaulting to
// info for unknown values.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
