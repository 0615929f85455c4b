package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// HTTP API
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/justyta-mail.db"`

	// Scheduler
	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"1m"`

	// Worker pools
	SyncWorkers int `env:"SYNC_WORKERS" envDefault:"4"`
	SendWorkers int `env:"SEND_WORKERS" envDefault:"4"`

	// Queue
	QueueMaxAttempts  int           `env:"QUEUE_MAX_ATTEMPTS" envDefault:"3"`
	QueuePollInterval time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	QueueRetryDelay   time.Duration `env:"QUEUE_RETRY_DELAY" envDefault:"30s"`

	// Mail sessions
	SessionTimeout time.Duration `env:"SESSION_TIMEOUT" envDefault:"2m"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.SyncInterval <= 0 {
		return nil, fmt.Errorf("SYNC_INTERVAL must be positive, got %s", cfg.SyncInterval)
	}
	if cfg.SyncWorkers < 1 || cfg.SendWorkers < 1 {
		return nil, fmt.Errorf("worker pool sizes must be at least 1")
	}
	if cfg.SessionTimeout <= 0 {
		return nil, fmt.Errorf("SESSION_TIMEOUT must be positive, got %s", cfg.SessionTimeout)
	}

	return cfg, nil
}
