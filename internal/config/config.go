package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the top-level configuration, matching config/config.yaml.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // HTTP server
	Database DatabaseConfig `mapstructure:"database"` // PostgreSQL
	Provider ProviderConfig `mapstructure:"provider"` // odds provider API
	Sync     SyncConfig     `mapstructure:"sync"`     // ingestion scheduling
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int    `mapstructure:"port"` // listen port
	Mode string `mapstructure:"mode"` // gin mode: debug/release/test
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`               // connection DSN (URL form)
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // connection pool cap
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // idle connections kept
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // max connection age
}

// ProviderConfig holds settings for the external odds provider API.
type ProviderConfig struct {
	BaseURL         string `mapstructure:"base_url"`          // API base address
	APIKey          string `mapstructure:"api_key"`           // API key, overridable via SGO_API_KEY
	Timeout         int    `mapstructure:"timeout"`           // per-request timeout (seconds)
	RetryCount      int    `mapstructure:"retry_count"`       // attempts per page on transient failures
	MaxPages        int    `mapstructure:"max_pages"`         // hard cap on pages per invocation
	PageLimit       int    `mapstructure:"page_limit"`        // events requested per page
	IncludeAltLines bool   `mapstructure:"include_alt_lines"` // request bookmaker alternate lines
	Proxy           string `mapstructure:"proxy"`             // optional proxy address
}

// SyncConfig holds ingestion scheduling settings.
type SyncConfig struct {
	Interval            time.Duration `mapstructure:"interval"`              // scheduler tick; 0 disables the scheduler
	EnabledLeagues      []string      `mapstructure:"enabled_leagues"`       // leagues the scheduler syncs
	DaysAhead           int           `mapstructure:"days_ahead"`            // fetch window: today .. today+N
	BatchSize           int           `mapstructure:"batch_size"`            // max records per write batch
	ReconcileSampleSize int           `mapstructure:"reconcile_sample_size"` // events sampled for post-run reconciliation
}

// LoadConfig reads config/config.yaml; secrets are overridden from a .env
// file or the environment (never committed to git).
func LoadConfig() (*Config, error) {
	// .env values override same-named yaml fields; the file may not exist.
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	viper.SetTypeByDefaultValue(true)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	overrideFromEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// overrideFromEnv replaces sensitive fields from the environment (env > yaml).
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("SGO_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("SGO_PROXY"); v != "" {
		cfg.Provider.Proxy = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Provider.Timeout <= 0 {
		cfg.Provider.Timeout = 30
	}
	if cfg.Provider.RetryCount <= 0 {
		cfg.Provider.RetryCount = 3
	}
	if cfg.Provider.MaxPages <= 0 {
		cfg.Provider.MaxPages = 10
	}
	if cfg.Provider.PageLimit <= 0 {
		cfg.Provider.PageLimit = 50
	}
	if cfg.Sync.BatchSize <= 0 || cfg.Sync.BatchSize > 500 {
		cfg.Sync.BatchSize = 500
	}
	if cfg.Sync.DaysAhead <= 0 {
		cfg.Sync.DaysAhead = 7
	}
	if cfg.Sync.ReconcileSampleSize <= 0 {
		cfg.Sync.ReconcileSampleSize = 5
	}
}
