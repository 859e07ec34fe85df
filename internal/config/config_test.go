package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsValidateWithToken(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.BotToken = "123:abc"

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "full", cfg.Mode)
	assert.Len(t, cfg.Aave.Networks, 3)
	assert.Equal(t, 10*time.Minute, cfg.Watch.Interval.Duration)
}

func TestDefaultsRequireTelegramToken(t *testing.T) {
	cfg := Defaults()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram: bot_token is required")
}

func TestServeModeSkipsTelegram(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "serve"

	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeTOML(t, `
mode = "watch"

[telegram]
bot_token = "123:abc"

[watch]
interval = "3m"

[[aave.networks]]
name = "Ethereum"
pool = "0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2"
data_provider = "0x7B4EB56E7CD4b454BA8ff71E4518426369a138a3"
rpc_endpoints = ["https://eth.example.com"]
call_timeout = "15s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "watch", cfg.Mode)
	assert.Equal(t, 3*time.Minute, cfg.Watch.Interval.Duration)
	// The networks array replaces the default list wholesale.
	require.Len(t, cfg.Aave.Networks, 1)
	assert.Equal(t, 15*time.Second, cfg.Aave.Networks[0].CallTimeout.Duration)
	// Untouched sections keep their defaults.
	assert.Equal(t, "https://api.kamino.finance", cfg.Kamino.BaseURL)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DEFIWATCH_TELEGRAM_BOT_TOKEN", "456:def")
	t.Setenv("DEFIWATCH_WATCH_INTERVAL", "90s")
	t.Setenv("DEFIWATCH_REDIS_ENABLED", "true")
	t.Setenv("DEFIWATCH_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "456:def", cfg.Telegram.BotToken)
	assert.Equal(t, 90*time.Second, cfg.Watch.Interval.Duration)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Kamino.BaseURL = ""
	cfg.Aave.Networks = nil
	cfg.Watch.Interval.Duration = 0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "bogus"`)
	assert.Contains(t, msg, `unknown log_level "loud"`)
	assert.Contains(t, msg, "kamino: base_url must not be empty")
	assert.Contains(t, msg, "aave: at least one network must be configured")
	assert.Contains(t, msg, "watch: interval must be > 0")
}

func TestValidateDebounceNeedsRedis(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.BotToken = "123:abc"
	cfg.Watch.DebounceEnabled = true
	cfg.Redis.Enabled = false

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "debounce_enabled requires redis")
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.BotToken = "123:abc"
	cfg.Postgres.Password = "hunter2"
	cfg.Server.APIKey = "key"
	cfg.Aave.Networks[0].RPCEndpoints = []string{"https://mainnet.infura.io/v3/deadbeef"}

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Telegram.BotToken)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Server.APIKey)
	assert.Equal(t, "https://mainnet.infura.io/***", red.Aave.Networks[0].RPCEndpoints[0])

	// The original is untouched.
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, "https://mainnet.infura.io/v3/deadbeef", cfg.Aave.Networks[0].RPCEndpoints[0])
}
