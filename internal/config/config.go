// Package config loads client settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultBaseURL     = "http://localhost:8000/api"
	DefaultDurablePath = "./data/session.db"
	DefaultIdleTimeout = 180 * time.Second
	DefaultDownloadDir = "."
)

// Config holds everything needed to wire the client.
type Config struct {
	// BaseURL is the REST backend root, e.g. http://localhost:8000/api.
	BaseURL string

	// DurablePath is the sqlite file backing the durable storage scope.
	DurablePath string

	// IdleTimeout is how long an ephemeral session may go without input.
	IdleTimeout time.Duration

	// HTTPTimeout bounds each request. Zero means no client-side timeout.
	HTTPTimeout time.Duration

	// DownloadDir is where invoices are written.
	DownloadDir string

	// MetricsAddr, when set, exposes prometheus metrics on that address.
	MetricsAddr string

	// LogLevel is passed to logging.Setup.
	LogLevel string
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	idle, err := durationEnv("IDLE_TIMEOUT", DefaultIdleTimeout)
	if err != nil {
		return nil, err
	}
	httpTimeout, err := durationEnv("HTTP_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BaseURL:     strings.TrimRight(getEnv("API_BASE_URL", DefaultBaseURL), "/"),
		DurablePath: getEnv("DURABLE_STORE_PATH", DefaultDurablePath),
		IdleTimeout: idle,
		HTTPTimeout: httpTimeout,
		DownloadDir: getEnv("DOWNLOAD_DIR", DefaultDownloadDir),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}
	if cfg.IdleTimeout <= 0 {
		return nil, fmt.Errorf("IDLE_TIMEOUT must be positive, got %s", cfg.IdleTimeout)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv accepts Go durations ("3m") or bare milliseconds ("180000").
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	var ms int64
	if _, err := fmt.Sscanf(raw, "%d", &ms); err != nil || fmt.Sprint(ms) != raw {
		return 0, fmt.Errorf("invalid %s %q: want a duration like 3m or milliseconds", key, raw)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
