// Package config provides configuration for the querygraph server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the server configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Model settings
	ModelBaseURL string
	ModelAPIKey  string
	ModelName    string
	ModelTimeout time.Duration

	// Search settings
	SearchBaseURL    string
	SearchTimeout    time.Duration
	SearchCacheTTL   time.Duration
	SearchRatePerSec float64

	// Orchestration
	TurnLimit    int
	MaxToolCalls int

	// InterruptTTL fails threads whose interrupt stays pending longer
	// than this. Zero disables the sweeper.
	InterruptTTL time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPPort:         getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:      getEnv("DATABASE_URL", "file:querygraph.db?cache=shared&mode=rwc"),
		ModelBaseURL:     getEnv("MODEL_BASE_URL", ""),
		ModelAPIKey:      getEnv("MODEL_API_KEY", ""),
		ModelName:        getEnv("MODEL_NAME", "gpt-4o-mini"),
		ModelTimeout:     time.Duration(getEnvInt("MODEL_TIMEOUT_MS", 60000)) * time.Millisecond,
		SearchBaseURL:    getEnv("SEARCH_BASE_URL", ""),
		SearchTimeout:    time.Duration(getEnvInt("SEARCH_TIMEOUT_MS", 15000)) * time.Millisecond,
		SearchCacheTTL:   time.Duration(getEnvInt("SEARCH_CACHE_TTL_MS", 300000)) * time.Millisecond,
		SearchRatePerSec: getEnvFloat("SEARCH_RATE_PER_SEC", 2),
		TurnLimit:        getEnvInt("TURN_LIMIT", 25),
		MaxToolCalls:     getEnvInt("MAX_TOOL_CALLS", 3),
		InterruptTTL:     time.Duration(getEnvInt("INTERRUPT_TTL_MS", 0)) * time.Millisecond,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
