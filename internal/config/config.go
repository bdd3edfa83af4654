// Package config provides configuration for the chess relay.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the relay configuration.
type Config struct {
	// Server settings
	Port         int `env:"PORT" envDefault:"3001"`          // Public WebSocket + HTTP port
	InternalPort int `env:"INTERNAL_PORT" envDefault:"3002"` // Internal HTTP port for /health, /internal/*

	// WebSocket settings
	PingInterval   time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	WriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	ReadTimeout    time.Duration `env:"WS_READ_TIMEOUT" envDefault:"60s"`
	MaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"65536"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","` // empty allows every origin

	// Game lifecycle
	Retention         time.Duration `env:"GAME_RETENTION" envDefault:"24h"`
	ReapInterval      time.Duration `env:"REAP_INTERVAL" envDefault:"1h"`
	FlagSweepInterval time.Duration `env:"FLAG_SWEEP_INTERVAL" envDefault:"500ms"`

	// Admission policy (rego module); empty uses the built-in policy
	PolicyFile string `env:"SESSION_POLICY_FILE"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.FlagSweepInterval <= 0 {
		return nil, fmt.Errorf("FLAG_SWEEP_INTERVAL must be positive, got %s", cfg.FlagSweepInterval)
	}
	if cfg.ReapInterval <= 0 {
		return nil, fmt.Errorf("REAP_INTERVAL must be positive, got %s", cfg.ReapInterval)
	}
	return cfg, nil
}

// OriginAllowed reports whether a websocket upgrade from origin is accepted.
func (c *Config) OriginAllowed(origin string) bool {
	if len(c.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}
