package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPAddr         = ":8099"
	defaultDBPath           = "/data/mikrofleet.db"
	defaultPollInterval     = 60 * time.Second
	defaultFullSyncCron     = "@every 15m"
	defaultConnectTimeout   = 10 * time.Second
	defaultProbeConcurrency = 5
	defaultProbeTimeout     = 10 * time.Second
	defaultDedupWindow      = 5 * time.Minute
	defaultWebhookTimeout   = 10 * time.Second
)

// Config stores runtime settings loaded from environment variables.
type Config struct {
	HTTPAddr         string
	DBPath           string
	LogLevel         slog.Level
	PollInterval     time.Duration
	FullSyncCron     string
	ConnectTimeout   time.Duration
	ProbeConcurrency int
	ProbeTimeout     time.Duration
	AlertDedupWindow time.Duration
	WebhookURL       string
	WebhookTimeout   time.Duration
}

// Load builds Config from environment variables using stable defaults.
func Load() Config {
	return Config{
		HTTPAddr:         getenv("HTTP_ADDR", defaultHTTPAddr),
		DBPath:           getenv("DB_PATH", defaultDBPath),
		LogLevel:         parseLogLevel(getenv("LOG_LEVEL", "info")),
		PollInterval:     parseDuration("POLL_INTERVAL", defaultPollInterval),
		FullSyncCron:     getenv("FULL_SYNC_CRON", defaultFullSyncCron),
		ConnectTimeout:   parseDuration("CONNECT_TIMEOUT", defaultConnectTimeout),
		ProbeConcurrency: parseInt("PROBE_CONCURRENCY", defaultProbeConcurrency),
		ProbeTimeout:     parseDuration("PROBE_TIMEOUT", defaultProbeTimeout),
		AlertDedupWindow: parseDuration("ALERT_DEDUP_WINDOW", defaultDedupWindow),
		WebhookURL:       getenv("WEBHOOK_URL", ""),
		WebhookTimeout:   parseDuration("WEBHOOK_TIMEOUT", defaultWebhookTimeout),
	}
}

// DBDir returns the target directory for DBPath.
func (c Config) DBDir() string {
	return filepath.Dir(c.DBPath)
}

func getenv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
