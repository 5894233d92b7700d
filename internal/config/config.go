// Package config defines the top-level configuration for the kalshi trading
// assistant and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by KALSHIBOT_* environment variables.
type Config struct {
	Kalshi   KalshiConfig   `toml:"kalshi"`
	OpenAI   OpenAIConfig   `toml:"openai"`
	Trading  TradingConfig  `toml:"trading"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// KalshiConfig holds Kalshi exchange API credentials. The RSA signing key can
// be supplied either as a plaintext PEM file or as an encrypted key file plus
// password.
type KalshiConfig struct {
	ApiKey            string `toml:"api_key"`
	RsaPrivateKeyPath string `toml:"rsa_private_key_path"`
	EncryptedKeyPath  string `toml:"encrypted_key_path"`
	KeyPassword       string `toml:"key_password"`
	BaseURL           string `toml:"base_url"`
}

// OpenAIConfig holds the chat model used for intent extraction.
type OpenAIConfig struct {
	ApiKey  string   `toml:"api_key"`
	BaseURL string   `toml:"base_url"`
	Model   string   `toml:"model"`
	Timeout duration `toml:"timeout"`
}

// TradingConfig holds the approval and sizing parameters.
type TradingConfig struct {
	MaxNotionalUSD float64  `toml:"max_notional_usd"`
	TokenTTL       duration `toml:"token_ttl"`
	SweepInterval  duration `toml:"sweep_interval"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PipelineConfig holds the market indexing parameters.
type PipelineConfig struct {
	Enabled              bool     `toml:"enabled"`
	IndexInterval        duration `toml:"index_interval"`
	MarketStatus         string   `toml:"market_status"`
	PageSize             int      `toml:"page_size"`
	MaxPages             int      `toml:"max_pages"`
	SnapshotEnabled      bool     `toml:"snapshot_enabled"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	ApiToken    string   `toml:"api_token"`
	CORSOrigins []string `toml:"cors_origins"`
	RateLimit   int      `toml:"rate_limit"` // requests per minute per client, 0 disables
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Kalshi: KalshiConfig{
			BaseURL: "https://api.elections.kalshi.com/trade-api/v2",
		},
		OpenAI: OpenAIConfig{
			Model:   "gpt-4o-mini",
			Timeout: duration{15 * time.Second},
		},
		Trading: TradingConfig{
			MaxNotionalUSD: 100.0,
			TokenTTL:       duration{30 * time.Second},
			SweepInterval:  duration{5 * time.Minute},
		},
		Database: DatabaseConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "kalshibot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Pipeline: PipelineConfig{
			Enabled:              true,
			IndexInterval:        duration{5 * time.Minute},
			MarketStatus:         "open",
			PageSize:             200,
			MaxPages:             50,
			SnapshotEnabled:      true,
			ArchiveRetentionDays: 90,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
		},
		Notify: NotifyConfig{
			Events: []string{"trade_proposed", "trade_executed", "execution_failed", "trade_cancelled"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve": true,
	"index": true,
	"full":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, index, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Kalshi — at least one signing key source must be specified.
	if c.Kalshi.ApiKey == "" {
		errs = append(errs, "kalshi: api_key must not be empty")
	}
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}
	if c.Kalshi.RsaPrivateKeyPath == "" && c.Kalshi.EncryptedKeyPath == "" {
		errs = append(errs, "kalshi: either rsa_private_key_path or encrypted_key_path must be set")
	}
	if c.Kalshi.EncryptedKeyPath != "" && c.Kalshi.KeyPassword == "" {
		errs = append(errs, "kalshi: key_password is required when encrypted_key_path is set")
	}

	// OpenAI
	if c.OpenAI.ApiKey == "" {
		errs = append(errs, "openai: api_key must not be empty")
	}
	if c.OpenAI.Model == "" {
		errs = append(errs, "openai: model must not be empty")
	}

	// Trading
	if c.Trading.MaxNotionalUSD <= 0 {
		errs = append(errs, "trading: max_notional_usd must be > 0")
	}
	if c.Trading.TokenTTL.Duration <= 0 {
		errs = append(errs, "trading: token_ttl must be > 0")
	}
	if c.Trading.SweepInterval.Duration <= 0 {
		errs = append(errs, "trading: sweep_interval must be > 0")
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — required only when snapshot archiving is on.
	if c.Pipeline.SnapshotEnabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when pipeline.snapshot_enabled is true")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when pipeline.snapshot_enabled is true")
		}
	}

	// Pipeline
	if c.Pipeline.Enabled {
		if c.Pipeline.IndexInterval.Duration <= 0 {
			errs = append(errs, "pipeline: index_interval must be > 0 when enabled")
		}
		if c.Pipeline.PageSize < 1 || c.Pipeline.PageSize > 1000 {
			errs = append(errs, fmt.Sprintf("pipeline: page_size must be 1-1000, got %d", c.Pipeline.PageSize))
		}
		if c.Pipeline.MaxPages < 1 {
			errs = append(errs, "pipeline: max_pages must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
