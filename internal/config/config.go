package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken string
	DatabaseURL   string
	Timezone      string
	DBLogLevel    string
	TickInterval  time.Duration
	AlertMessage  string
}

// Location resolves Timezone, falling back to the local zone.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

var envKeys = map[string]string{
	"telegram_token": "TELEGRAM_TOKEN",
	"database_url":   "DATABASE_URL",
	"timezone":       "TIMEZONE",
	"db_log_level":   "DB_LOG_LEVEL",
	"tick_interval":  "TICK_INTERVAL",
	"alert_message":  "ALERT_MESSAGE",
}

// Load reads configuration from an optional YAML file and environment
// variables, environment taking precedence. An empty path looks for
// coffeetimer.yaml in the user config dir and the working directory.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("database_url", "coffee_timer.db")
	v.SetDefault("db_log_level", "warn")
	v.SetDefault("tick_interval", "1s")
	v.SetDefault("alert_message", "Timer Completed!")

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("coffeetimer")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "coffeetimer"))
		}
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		TelegramToken: strings.TrimSpace(v.GetString("telegram_token")),
		DatabaseURL:   strings.TrimSpace(v.GetString("database_url")),
		Timezone:      strings.TrimSpace(v.GetString("timezone")),
		DBLogLevel:    strings.TrimSpace(v.GetString("db_log_level")),
		TickInterval:  v.GetDuration("tick_interval"),
		AlertMessage:  v.GetString("alert_message"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "coffee_timer.db"
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.AlertMessage == "" {
		cfg.AlertMessage = "Timer Completed!"
	}
	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			return cfg, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
		}
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}
