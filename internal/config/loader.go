package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies KALSHIBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known KALSHIBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Kalshi ──
	setStr(&cfg.Kalshi.ApiKey, "KALSHIBOT_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "KALSHIBOT_KALSHI_RSA_PRIVATE_KEY_PATH")
	setStr(&cfg.Kalshi.EncryptedKeyPath, "KALSHIBOT_KALSHI_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Kalshi.KeyPassword, "KALSHIBOT_KALSHI_KEY_PASSWORD")
	setStr(&cfg.Kalshi.BaseURL, "KALSHIBOT_KALSHI_BASE_URL")

	// ── OpenAI ──
	setStr(&cfg.OpenAI.ApiKey, "KALSHIBOT_OPENAI_API_KEY")
	setStr(&cfg.OpenAI.ApiKey, "OPENAI_API_KEY") // compatibility alias
	setStr(&cfg.OpenAI.BaseURL, "KALSHIBOT_OPENAI_BASE_URL")
	setStr(&cfg.OpenAI.Model, "KALSHIBOT_OPENAI_MODEL")
	setDuration(&cfg.OpenAI.Timeout, "KALSHIBOT_OPENAI_TIMEOUT")

	// ── Trading ──
	setFloat64(&cfg.Trading.MaxNotionalUSD, "KALSHIBOT_TRADING_MAX_NOTIONAL_USD")
	setDuration(&cfg.Trading.TokenTTL, "KALSHIBOT_TRADING_TOKEN_TTL")
	setDuration(&cfg.Trading.SweepInterval, "KALSHIBOT_TRADING_SWEEP_INTERVAL")

	// ── Database ──
	setStr(&cfg.Database.DSN, "KALSHIBOT_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "KALSHIBOT_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "KALSHIBOT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "KALSHIBOT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "KALSHIBOT_DATABASE_NAME")
	setStr(&cfg.Database.User, "KALSHIBOT_DATABASE_USER")
	setStr(&cfg.Database.Password, "KALSHIBOT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "KALSHIBOT_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "KALSHIBOT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "KALSHIBOT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "KALSHIBOT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "KALSHIBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "KALSHIBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "KALSHIBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "KALSHIBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "KALSHIBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "KALSHIBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "KALSHIBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "KALSHIBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "KALSHIBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "KALSHIBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "KALSHIBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "KALSHIBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "KALSHIBOT_S3_FORCE_PATH_STYLE")

	// ── Pipeline ──
	setBool(&cfg.Pipeline.Enabled, "KALSHIBOT_PIPELINE_ENABLED")
	setDuration(&cfg.Pipeline.IndexInterval, "KALSHIBOT_PIPELINE_INDEX_INTERVAL")
	setStr(&cfg.Pipeline.MarketStatus, "KALSHIBOT_PIPELINE_MARKET_STATUS")
	setInt(&cfg.Pipeline.PageSize, "KALSHIBOT_PIPELINE_PAGE_SIZE")
	setInt(&cfg.Pipeline.MaxPages, "KALSHIBOT_PIPELINE_MAX_PAGES")
	setBool(&cfg.Pipeline.SnapshotEnabled, "KALSHIBOT_PIPELINE_SNAPSHOT_ENABLED")
	setInt(&cfg.Pipeline.ArchiveRetentionDays, "KALSHIBOT_PIPELINE_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "KALSHIBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "KALSHIBOT_SERVER_PORT")
	setStr(&cfg.Server.ApiToken, "KALSHIBOT_SERVER_API_TOKEN")
	setStringSlice(&cfg.Server.CORSOrigins, "KALSHIBOT_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "KALSHIBOT_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "KALSHIBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "KALSHIBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "KALSHIBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "KALSHIBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "KALSHIBOT_MODE")
	setStr(&cfg.LogLevel, "KALSHIBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
