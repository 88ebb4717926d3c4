// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds all tunables for the server and bridge binaries. Values come
// from the environment (with an optional .env file); command flags override.
type Config struct {
	Addr      string `env:"WARFRONT_ADDR" envDefault:":30000"`
	DBPath    string `env:"WARFRONT_DB_PATH" envDefault:"data/warfront.db"`
	WorldPath string `env:"WARFRONT_WORLD" envDefault:""`

	PollInterval time.Duration `env:"WARFRONT_POLL_INTERVAL" envDefault:"2s"`
	PollTimeout  time.Duration `env:"WARFRONT_POLL_TIMEOUT" envDefault:"5s"`

	ControlThreshold int `env:"WARFRONT_CONTROL_THRESHOLD" envDefault:"50"`
	ContestMargin    int `env:"WARFRONT_CONTEST_MARGIN" envDefault:"10"`

	HubURL              string        `env:"WARFRONT_HUB_URL" envDefault:"ws://localhost:30000/ws"`
	BridgeBatchSize     int           `env:"WARFRONT_BRIDGE_BATCH_SIZE" envDefault:"10"`
	BridgeFlushInterval time.Duration `env:"WARFRONT_BRIDGE_FLUSH_INTERVAL" envDefault:"1s"`
	BridgeMaxRetries    int           `env:"WARFRONT_BRIDGE_MAX_RETRIES" envDefault:"5"`

	Development bool `env:"WARFRONT_DEV" envDefault:"false"`
}

// Load reads an optional .env file and parses the environment.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

// Logger builds the root logger for the configured mode.
func (c *Config) Logger() (*zap.Logger, error) {
	if c.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
