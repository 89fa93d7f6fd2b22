// Package config loads process configuration from a .env file and the
// environment, with working defaults for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config carries every tunable the server needs at startup.
type Config struct {
	Port         string
	DatabasePath string

	// TradingPollInterval is how often each goal worker wakes up;
	// MonitorInterval is the progress monitor's observation cadence.
	TradingPollInterval time.Duration
	MonitorInterval     time.Duration
	ExtendedHours       bool

	AIEndpoint string
	AIModel    string
	AIAPIKey   string

	AuthSecret string
}

// Load reads .env when present, then the process environment. Missing keys
// fall back to defaults; only the AI key is genuinely optional (the analysis
// client degrades to errors the session runner absorbs).
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}

	return &Config{
		Port:                getEnv("PORT", "8080"),
		DatabasePath:        getEnv("DATABASE_PATH", "tradepilot.db"),
		TradingPollInterval: getDuration("TRADING_POLL_INTERVAL", 5*time.Minute),
		MonitorInterval:     getDuration("MONITOR_INTERVAL", 5*time.Minute),
		ExtendedHours:       getBool("EXTENDED_HOURS", false),
		AIEndpoint:          getEnv("AI_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta"),
		AIModel:             getEnv("AI_MODEL", "gemini-2.0-flash"),
		AIAPIKey:            os.Getenv("AI_API_KEY"),
		AuthSecret:          getEnv("AUTH_SECRET", "tradepilot-secret-key"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration, using default")
		return fallback
	}
	return d
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid boolean, using default")
		return fallback
	}
	return b
}
