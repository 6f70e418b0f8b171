package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken string
	DatabaseURL   string
	// ReportTime is HH:MM in the reporting zone; empty disables daily summaries.
	ReportTime   string
	LiveTick     time.Duration
	LiveRefresh  time.Duration
	RealtimeAddr string
	LogLevel     logrus.Level
}

// ErrMissingToken is returned by RequireToken when no bot token is set.
var ErrMissingToken = errors.New("TELEGRAM_TOKEN is required")

// Load reads configuration from environment variables and, when path is
// set, from that config file, with sane defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("database_url", "time_tracker.db")
	v.SetDefault("report_time", "21:00")
	v.SetDefault("live_tick", "1s")
	v.SetDefault("live_refresh", "1m")
	v.SetDefault("realtime_addr", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("telegram_token", "")
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return Config{}, fmt.Errorf("config path: %w", err)
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		TelegramToken: strings.TrimSpace(v.GetString("telegram_token")),
		ReportTime:    strings.TrimSpace(v.GetString("report_time")),
		LiveTick:      v.GetDuration("live_tick"),
		LiveRefresh:   v.GetDuration("live_refresh"),
		RealtimeAddr:  strings.TrimSpace(v.GetString("realtime_addr")),
	}

	dsn := strings.TrimSpace(v.GetString("database_url"))
	if dsn == "" {
		dsn = "time_tracker.db"
	}
	dsn, err := homedir.Expand(dsn)
	if err != nil {
		return cfg, fmt.Errorf("DATABASE_URL: %w", err)
	}
	cfg.DatabaseURL = dsn

	if cfg.ReportTime != "" {
		if _, err := time.Parse("15:04", cfg.ReportTime); err != nil {
			return cfg, fmt.Errorf("REPORT_TIME %q: expected HH:MM", cfg.ReportTime)
		}
	}
	if cfg.LiveTick <= 0 {
		return cfg, fmt.Errorf("LIVE_TICK must be a positive duration")
	}
	if cfg.LiveRefresh < cfg.LiveTick {
		return cfg, fmt.Errorf("LIVE_REFRESH must not be shorter than LIVE_TICK")
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(v.GetString("log_level")))
	if err != nil {
		return cfg, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	return cfg, nil
}

// RequireToken fails when the bot token is missing.
func (c Config) RequireToken() error {
	if c.TelegramToken == "" {
		return ErrMissingToken
	}
	return nil
}
