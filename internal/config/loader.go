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
// built-in defaults, applies DEFIWATCH_* environment variable overrides, and
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

// applyEnvOverrides reads well-known DEFIWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file. The Aave network list is structural and is TOML-only.
func applyEnvOverrides(cfg *Config) {
	// ── Telegram ──
	setStr(&cfg.Telegram.BotToken, "DEFIWATCH_TELEGRAM_BOT_TOKEN")
	setStr(&cfg.Telegram.BaseURL, "DEFIWATCH_TELEGRAM_BASE_URL")

	// ── Kamino ──
	setStr(&cfg.Kamino.BaseURL, "DEFIWATCH_KAMINO_BASE_URL")

	// ── Watch ──
	setDuration(&cfg.Watch.Interval, "DEFIWATCH_WATCH_INTERVAL")
	setBool(&cfg.Watch.DebounceEnabled, "DEFIWATCH_WATCH_DEBOUNCE_ENABLED")
	setDuration(&cfg.Watch.DebounceTTL, "DEFIWATCH_WATCH_DEBOUNCE_TTL")

	// ── Catalog ──
	setDuration(&cfg.Catalog.RefreshInterval, "DEFIWATCH_CATALOG_REFRESH_INTERVAL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DEFIWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "DEFIWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DEFIWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DEFIWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DEFIWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DEFIWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DEFIWATCH_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DEFIWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DEFIWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "DEFIWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "DEFIWATCH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "DEFIWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DEFIWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DEFIWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DEFIWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DEFIWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DEFIWATCH_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "DEFIWATCH_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "DEFIWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DEFIWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "DEFIWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "DEFIWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DEFIWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DEFIWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DEFIWATCH_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "DEFIWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "DEFIWATCH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DEFIWATCH_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "DEFIWATCH_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "DEFIWATCH_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "DEFIWATCH_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.DiscordWebhookURL, "DEFIWATCH_NOTIFY_DISCORD_WEBHOOK_URL")

	// ── Top-level ──
	setStr(&cfg.Mode, "DEFIWATCH_MODE")
	setStr(&cfg.LogLevel, "DEFIWATCH_LOG_LEVEL")
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
