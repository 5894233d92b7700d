package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Kalshi.ApiKey = "key-id"
	cfg.Kalshi.RsaPrivateKeyPath = "/etc/kalshibot/kalshi.pem"
	cfg.OpenAI.ApiKey = "sk-test"
	return cfg
}

func TestValidateAcceptsFilledDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "bogus"
	cfg.Trading.MaxNotionalUSD = 0
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "max_notional_usd")
	assert.Contains(t, err.Error(), "redis: addr")
}

func TestValidateEncryptedKeyNeedsPassword(t *testing.T) {
	cfg := validConfig()
	cfg.Kalshi.RsaPrivateKeyPath = ""
	cfg.Kalshi.EncryptedKeyPath = "/etc/kalshibot/kalshi.pem.enc"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password")

	cfg.Kalshi.KeyPassword = "hunter2"
	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KALSHIBOT_TRADING_MAX_NOTIONAL_USD", "250.5")
	t.Setenv("KALSHIBOT_TRADING_TOKEN_TTL", "45s")
	t.Setenv("KALSHIBOT_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.InDelta(t, 250.5, cfg.Trading.MaxNotionalUSD, 1e-9)
	assert.Equal(t, "45s", cfg.Trading.TokenTTL.Duration.String())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Password = "pg-secret"
	cfg.Server.ApiToken = "bearer-token"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Kalshi.ApiKey)
	assert.Equal(t, "***", red.OpenAI.ApiKey)
	assert.Equal(t, "***", red.Database.Password)
	assert.Equal(t, "***", red.Server.ApiToken)

	// The original is untouched.
	assert.Equal(t, "sk-test", cfg.OpenAI.ApiKey)
}
