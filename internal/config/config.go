// Package config provides configuration management for the render service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the render service.
type Config struct {
	// Server settings
	Port     int
	LogLevel string

	// Cookie jar settings
	CookieFile string

	// Browser settings
	ChromePath         string
	BrowserIdleTimeout time.Duration
	NavTimeout         time.Duration

	// Render wait budget settings
	WaitMin     time.Duration
	WaitMax     time.Duration
	WaitDefault time.Duration
	SettleGrace time.Duration

	// Render history settings (empty path disables persistence)
	HistoryDBPath string

	// Server idle shutdown (0 disables)
	IdleTimeout time.Duration
}

// Load creates a Config from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:               getEnvInt("PORT", 8180),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CookieFile:         getEnv("COOKIE_FILE", "data/cookies.json"),
		ChromePath:         getEnv("CHROME_PATH", ""),
		BrowserIdleTimeout: getEnvDuration("BROWSER_IDLE_TIMEOUT", 3*time.Minute),
		NavTimeout:         getEnvDuration("NAV_TIMEOUT", 60*time.Second),
		WaitMin:            getEnvDuration("WAIT_MIN", 500*time.Millisecond),
		WaitMax:            getEnvDuration("WAIT_MAX", 10*time.Second),
		WaitDefault:        getEnvDuration("WAIT_DEFAULT", 5*time.Second),
		SettleGrace:        getEnvDuration("SETTLE_GRACE", 2*time.Second),
		HistoryDBPath:      getEnv("HISTORY_DB_PATH", ""),
		IdleTimeout:        getEnvDuration("IDLE_TIMEOUT", 0),
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
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
