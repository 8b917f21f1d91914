package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envKeys {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaultsFromEnv(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("TELEGRAM_TOKEN", " secret ")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TelegramToken != "secret" {
		t.Fatalf("token not trimmed: %q", cfg.TelegramToken)
	}
	if cfg.DatabaseURL != "coffee_timer.db" || cfg.TickInterval != time.Second || cfg.AlertMessage != "Timer Completed!" {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if cfg.Location() != time.Local {
		t.Fatal("empty timezone should use the local zone")
	}
}

func TestLoadRequiresToken(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	if _, err := Load(""); err == nil {
		t.Fatal("expected error without TELEGRAM_TOKEN")
	}
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "coffeetimer.yaml")
	content := "telegram_token: from-file\n" +
		"database_url: /var/lib/coffee/timers.db\n" +
		"tick_interval: 250ms\n" +
		"timezone: UTC\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DATABASE_URL", "override.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TelegramToken != "from-file" {
		t.Fatalf("token from file not used: %q", cfg.TelegramToken)
	}
	if cfg.DatabaseURL != "override.db" {
		t.Fatalf("env should win over file, got %q", cfg.DatabaseURL)
	}
	if cfg.TickInterval != 250*time.Millisecond {
		t.Fatalf("unexpected tick interval: %v", cfg.TickInterval)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("unexpected location: %v", cfg.Location())
	}
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("TELEGRAM_TOKEN", "x")
	t.Setenv("TIMEZONE", "Mars/Olympus")
	if _, err := Load(""); err == nil {
		t.Fatal("expected timezone error")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
