package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the task tracker bot.
type Config struct {
	BotToken    string
	DatabaseURL string

	BindAddr         string
	MetricsNamespace string
	ShutdownTimeout  time.Duration
	AllowAnyOrigin   bool

	DefaultTimezone          string
	ReminderSweepInterval    time.Duration
	SessionInactivityTimeout time.Duration
	ListPageLineBudget       int

	LogLevel string
	LogFile  string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BotToken:                 envTrimmed("BOT_TOKEN"),
		DatabaseURL:              envTrimmed("DATABASE_URL"),
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "taskbot"),
		DefaultTimezone:          envOrDefault("DEFAULT_TZ", "Europe/Moscow"),
		LogLevel:                 envOrDefault("LOG_LEVEL", "info"),
		LogFile:                  envTrimmed("LOG_FILE"),
		ShutdownTimeout:          15 * time.Second,
		ReminderSweepInterval:    time.Minute,
		SessionInactivityTimeout: 10 * time.Minute,
		ListPageLineBudget:       40,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ReminderSweepInterval, err = durationFromEnv("REMINDER_SWEEP_INTERVAL", cfg.ReminderSweepInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ListPageLineBudget, err = intFromEnv("LIST_PAGE_LINE_BUDGET", cfg.ListPageLineBudget)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.ReminderSweepInterval < 5*time.Second {
		return Config{}, fmt.Errorf("REMINDER_SWEEP_INTERVAL must be at least 5s")
	}
	if cfg.SessionInactivityTimeout < 30*time.Second {
		return Config{}, fmt.Errorf("SESSION_INACTIVITY_TIMEOUT must be at least 30s")
	}
	if cfg.ListPageLineBudget <= 0 {
		return Config{}, fmt.Errorf("LIST_PAGE_LINE_BUDGET must be positive")
	}
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return Config{}, fmt.Errorf("DEFAULT_TZ parse error: %w", err)
	}

	return cfg, nil
}

// Location resolves the configured default timezone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func envOrDefault(key, fallback string) string {
	v := envTrimmed(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
