package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BOT_TOKEN", "DATABASE_URL", "APP_BIND_ADDR", "APP_METRICS_NAMESPACE",
		"APP_SHUTDOWN_TIMEOUT", "APP_ALLOW_ANY_ORIGIN", "DEFAULT_TZ",
		"REMINDER_SWEEP_INTERVAL", "SESSION_INACTIVITY_TIMEOUT",
		"LIST_PAGE_LINE_BUDGET", "LOG_LEVEL", "LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.MetricsNamespace != "taskbot" {
		t.Fatalf("MetricsNamespace = %q, want %q", cfg.MetricsNamespace, "taskbot")
	}
	if cfg.DefaultTimezone != "Europe/Moscow" {
		t.Fatalf("DefaultTimezone = %q, want %q", cfg.DefaultTimezone, "Europe/Moscow")
	}
	if cfg.ReminderSweepInterval != time.Minute {
		t.Fatalf("ReminderSweepInterval = %v, want %v", cfg.ReminderSweepInterval, time.Minute)
	}
	if cfg.SessionInactivityTimeout != 10*time.Minute {
		t.Fatalf("SessionInactivityTimeout = %v, want %v", cfg.SessionInactivityTimeout, 10*time.Minute)
	}
	if cfg.ListPageLineBudget != 40 {
		t.Fatalf("ListPageLineBudget = %d, want 40", cfg.ListPageLineBudget)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "  123:abc  ")
	t.Setenv("REMINDER_SWEEP_INTERVAL", "30s")
	t.Setenv("SESSION_INACTIVITY_TIMEOUT", "2m")
	t.Setenv("DEFAULT_TZ", "UTC")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BotToken != "123:abc" {
		t.Fatalf("BotToken = %q, want trimmed value", cfg.BotToken)
	}
	if cfg.ReminderSweepInterval != 30*time.Second {
		t.Fatalf("ReminderSweepInterval = %v, want 30s", cfg.ReminderSweepInterval)
	}
	if cfg.SessionInactivityTimeout != 2*time.Minute {
		t.Fatalf("SessionInactivityTimeout = %v, want 2m", cfg.SessionInactivityTimeout)
	}
	if !cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = false, want true")
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("Location() = %v, want UTC", cfg.Location())
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "REMINDER_SWEEP_INTERVAL", "soon"},
		{"tiny sweep interval", "REMINDER_SWEEP_INTERVAL", "1s"},
		{"tiny session timeout", "SESSION_INACTIVITY_TIMEOUT", "5s"},
		{"bad int", "LIST_PAGE_LINE_BUDGET", "many"},
		{"zero budget", "LIST_PAGE_LINE_BUDGET", "0"},
		{"bad bool", "APP_ALLOW_ANY_ORIGIN", "maybe"},
		{"unknown timezone", "DEFAULT_TZ", "Mars/Olympus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() accepted %s=%q", tt.key, tt.value)
			}
		})
	}
}
