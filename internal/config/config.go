// Package config provides configuration for the analytics engine.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the service configuration, loaded from environment variables.
type Config struct {
	// Server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8000"`

	// Storage
	DatabasePath string `env:"DATABASE_PATH" envDefault:"chatlytics.db"`

	// Answer generation
	LLMAPIKey    string `env:"LLM_API_KEY"`
	LLMBaseURL   string `env:"LLM_BASE_URL"`
	LLMModel     string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	SystemPrompt string `env:"SYSTEM_PROMPT"`

	// Retrieval
	RetrieverURL  string `env:"RETRIEVER_URL"`
	RetrieverTopK int    `env:"RETRIEVER_TOP_K" envDefault:"5"`

	// Reverse geocoding
	GeocodeCachePath string `env:"GEOCODE_CACHE_PATH" envDefault:"geocode_cache.json"`
	GeocodeUserAgent string `env:"GEOCODE_USER_AGENT" envDefault:"chatlytics/1.0"`

	// Session lifecycle
	HistoryLimit      int           `env:"HISTORY_LIMIT" envDefault:"10"`
	InactivityTimeout time.Duration `env:"INACTIVITY_TIMEOUT" envDefault:"300s"`
	ReapSchedule      string        `env:"REAP_SCHEDULE" envDefault:"*/5 * * * *"`

	// WebSocket
	PingInterval   time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	WriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	ReadTimeout    time.Duration `env:"WS_READ_TIMEOUT" envDefault:"60s"`
	AnswerTimeout  time.Duration `env:"ANSWER_TIMEOUT" envDefault:"60s"`
	MaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"65536"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
