// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Username string  `yaml:"username"`
	Workers  int     `yaml:"workers"` // polling workers
	AdminIDs []int64 `yaml:"admin_ids"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port       int           `yaml:"port"`
	Password   string        `yaml:"password"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RecoveryConfig tunes the delivery recovery engine and its sweep worker.
type RecoveryConfig struct {
	Enabled         bool          `yaml:"enabled"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`   // default 15m
	RunOnStartup    bool          `yaml:"run_on_startup"`   // sweep once right after boot
	MaxAttempts     int           `yaml:"max_attempts"`     // dispatch attempts per delivery, default 5
	BaseDelay       time.Duration `yaml:"base_delay"`       // first backoff step, default 5s
	MaxDelay        time.Duration `yaml:"max_delay"`        // backoff cap, default 5m
	ItemDelay       time.Duration `yaml:"item_delay"`       // pause between sweep items, default 1s
	StaleAfter      time.Duration `yaml:"stale_after"`      // grace window for the staleness clause, default 10m
	BatchLimit      int           `yaml:"batch_limit"`      // max payments per sweep, default 200
	DispatchTimeout time.Duration `yaml:"dispatch_timeout"` // bot API call deadline, default 10s
	LockTTL         time.Duration `yaml:"lock_ttl"`         // redis sweep lease TTL, default 10m
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Recovery RecoveryConfig `yaml:"recovery"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 8080
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	cfg.Recovery = normalizeRecovery(cfg.Recovery)

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Admin.JWTSecret == "" {
		return nil, errors.New("admin.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeRecovery(r RecoveryConfig) RecoveryConfig {
	if r.SweepInterval <= 0 {
		r.SweepInterval = 15 * time.Minute
	}
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 5
	}
	if r.BaseDelay <= 0 {
		r.BaseDelay = 5 * time.Second
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = 5 * time.Minute
	}
	if r.ItemDelay <= 0 {
		r.ItemDelay = time.Second
	}
	if r.StaleAfter <= 0 {
		r.StaleAfter = 10 * time.Minute
	}
	if r.BatchLimit <= 0 {
		r.BatchLimit = 200
	}
	if r.DispatchTimeout <= 0 {
		r.DispatchTimeout = 10 * time.Second
	}
	if r.LockTTL <= 0 {
		r.LockTTL = 10 * time.Minute
	}
	return r
}
