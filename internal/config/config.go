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

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type SupabaseConfig struct {
	URL     string        `yaml:"url"` // project host, e.g. abc.supabase.co
	Key     string        `yaml:"key"`
	Timeout time.Duration `yaml:"timeout"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type StoreConfig struct {
	Driver   string         `yaml:"driver"` // supabase | postgres | memory
	Supabase SupabaseConfig `yaml:"supabase"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // empty disables the account cache
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AdminConfig struct {
	Port       int           `yaml:"port"`
	APIKey     string        `yaml:"api_key"` // shared secret exchanged for a session token
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type LimitsConfig struct {
	// FreePredictions is the free quota before a subscription is required.
	FreePredictions int `yaml:"free_predictions"`
	// WriteAttempts bounds the optimistic-concurrency retry loops.
	WriteAttempts int `yaml:"write_attempts"`
}

type PromoConfig struct {
	Prefix     string `yaml:"prefix"`
	CodeLength int    `yaml:"code_length"` // random part, excluding prefix
}

type Config struct {
	Log    LogConfig   `yaml:"log"`
	Store  StoreConfig `yaml:"store"`
	Redis  RedisConfig `yaml:"redis"`
	Admin  AdminConfig `yaml:"admin"`
	Limits LimitsConfig `yaml:"limits"`
	Promo  PromoConfig `yaml:"promo"`

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
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "supabase"
	}
	if cfg.Store.Supabase.Timeout <= 0 {
		cfg.Store.Supabase.Timeout = 10 * time.Second
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 8090
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Limits.FreePredictions <= 0 {
		cfg.Limits.FreePredictions = 2
	}
	if cfg.Limits.WriteAttempts <= 0 {
		cfg.Limits.WriteAttempts = 3
	}
	if cfg.Promo.Prefix == "" {
		cfg.Promo.Prefix = "TAROT"
	}
	if cfg.Promo.CodeLength <= 0 {
		cfg.Promo.CodeLength = 8
	}

	// Minimal validation
	switch cfg.Store.Driver {
	case "supabase":
		if cfg.Store.Supabase.URL == "" || cfg.Store.Supabase.Key == "" {
			return nil, errors.New("store.supabase.url and store.supabase.key are required")
		}
	case "postgres":
		if cfg.Store.Postgres.URL == "" {
			return nil, errors.New("store.postgres.url is required")
		}
	case "memory":
		// nothing to validate; dev/demo only
	default:
		return nil, fmt.Errorf("unknown store.driver %q", cfg.Store.Driver)
	}
	if cfg.Admin.APIKey != "" && cfg.Admin.JWTSecret == "" {
		return nil, errors.New("admin.jwt_secret is required when admin.api_key is set")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
