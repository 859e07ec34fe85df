// Package config defines the defiwatch configuration model. Fields are
// populated from a TOML file and then optionally overridden by DEFIWATCH_*
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for the whole application.
type Config struct {
	Telegram TelegramConfig `toml:"telegram"`
	Kamino   KaminoConfig   `toml:"kamino"`
	Aave     AaveConfig     `toml:"aave"`
	Watch    WatchConfig    `toml:"watch"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`

	// Mode selects which subsystems run: "watch", "bot", "serve", "full".
	Mode string `toml:"mode"`

	// LogLevel is one of debug|info|warn|error.
	LogLevel string `toml:"log_level"`
}

// TelegramConfig holds Telegram Bot API credentials.
type TelegramConfig struct {
	BotToken string `toml:"bot_token"`
	// BaseURL overrides the Bot API host, e.g. for a local test server.
	// Leave empty for https://api.telegram.org.
	BaseURL string `toml:"base_url"`
}

// KaminoConfig holds Kamino lending API parameters.
type KaminoConfig struct {
	BaseURL string `toml:"base_url"`
}

// AaveNetworkConfig describes one supported Aave v3 deployment.
type AaveNetworkConfig struct {
	Name         string   `toml:"name"`
	Pool         string   `toml:"pool"`
	DataProvider string   `toml:"data_provider"`
	// RPCEndpoints is the prioritized JSON-RPC endpoint list; the first
	// reachable endpoint wins.
	RPCEndpoints []string `toml:"rpc_endpoints"`
	CallTimeout  duration `toml:"call_timeout"`
}

// AaveConfig holds the list of EVM networks to scan.
type AaveConfig struct {
	Networks []AaveNetworkConfig `toml:"networks"`
}

// WatchConfig holds the periodic sweep parameters.
type WatchConfig struct {
	// Interval between risk sweeps.
	Interval duration `toml:"interval"`
	// DebounceEnabled suppresses repeat alerts for the same wallet and tier
	// within DebounceTTL. When disabled an at-risk wallet alerts every sweep.
	DebounceEnabled bool     `toml:"debounce_enabled"`
	DebounceTTL     duration `toml:"debounce_ttl"`
}

// CatalogConfig holds market-catalog refresh parameters.
type CatalogConfig struct {
	RefreshInterval duration `toml:"refresh_interval"`
}

// PostgresConfig holds PostgreSQL connection parameters. An explicit DSN
// wins over the individual fields.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"sslmode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis backs the catalog
// snapshot cache, alert debouncing, and API rate limiting; when disabled
// those features degrade gracefully.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds the S3-compatible object store used for sweep archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds dashboard API server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey protects mutating endpoints; empty disables authentication.
	APIKey string `toml:"api_key"`
	// RateLimit is requests per client per RateWindow; zero disables
	// limiting. Requires Redis.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds additional notification channel credentials beyond the
// primary Telegram bot.
type NotifyConfig struct {
	DiscordWebhookURL string `toml:"discord_webhook_url"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "10m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "10m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Kamino: KaminoConfig{
			BaseURL: "https://api.kamino.finance",
		},
		Aave: AaveConfig{
			Networks: []AaveNetworkConfig{
				{
					Name:         "Ethereum",
					Pool:         "0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2",
					DataProvider: "0x7B4EB56E7CD4b454BA8ff71E4518426369a138a3",
					RPCEndpoints: []string{
						"https://eth.llamarpc.com",
						"https://rpc.ankr.com/eth",
					},
				},
				{
					Name:         "Arbitrum",
					Pool:         "0x794a61358D6845594F94dc1DB02A252b5b4814aD",
					DataProvider: "0x69FA688f1Dc47d4B5d8029D5a35FB7a548310654",
					RPCEndpoints: []string{
						"https://arb1.arbitrum.io/rpc",
						"https://rpc.ankr.com/arbitrum",
					},
				},
				{
					Name:         "Base",
					Pool:         "0xA238Dd80C259a72e81d7e4664a9801593F98d1c5",
					DataProvider: "0x2d8A3C5677189723C4cB8873CfC9C8976FDF38Ac",
					RPCEndpoints: []string{
						"https://mainnet.base.org",
						"https://rpc.ankr.com/base",
					},
				},
			},
		},
		Watch: WatchConfig{
			Interval:        duration{10 * time.Minute},
			DebounceEnabled: false,
			DebounceTTL:     duration{30 * time.Minute},
		},
		Catalog: CatalogConfig{
			RefreshInterval: duration{30 * time.Minute},
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "defiwatch",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "defiwatch-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   0,
			RateWindow:  duration{time.Minute},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"watch": true,
	"bot":   true,
	"serve": true,
	"full":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: watch, bot, serve, full)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Telegram is required whenever the bot command loop or alerting runs.
	needsTelegram := mode == "bot" || mode == "watch" || mode == "full"
	if needsTelegram && c.Telegram.BotToken == "" {
		errs = append(errs, "telegram: bot_token is required for mode "+c.Mode)
	}

	if c.Kamino.BaseURL == "" {
		errs = append(errs, "kamino: base_url must not be empty")
	}

	if len(c.Aave.Networks) == 0 {
		errs = append(errs, "aave: at least one network must be configured")
	}
	seen := map[string]bool{}
	for i, n := range c.Aave.Networks {
		if n.Name == "" {
			errs = append(errs, fmt.Sprintf("aave: networks[%d]: name must not be empty", i))
			continue
		}
		key := strings.ToLower(n.Name)
		if seen[key] {
			errs = append(errs, fmt.Sprintf("aave: duplicate network %q", n.Name))
		}
		seen[key] = true
		if n.Pool == "" {
			errs = append(errs, fmt.Sprintf("aave: %s: pool address must not be empty", n.Name))
		}
		if n.DataProvider == "" {
			errs = append(errs, fmt.Sprintf("aave: %s: data_provider address must not be empty", n.Name))
		}
		if len(n.RPCEndpoints) == 0 {
			errs = append(errs, fmt.Sprintf("aave: %s: at least one rpc endpoint is required", n.Name))
		}
	}

	if c.Watch.Interval.Duration <= 0 {
		errs = append(errs, "watch: interval must be > 0")
	}
	if c.Watch.DebounceEnabled {
		if !c.Redis.Enabled {
			errs = append(errs, "watch: debounce_enabled requires redis to be enabled")
		}
		if c.Watch.DebounceTTL.Duration <= 0 {
			errs = append(errs, "watch: debounce_ttl must be > 0 when debounce is enabled")
		}
	}

	if c.Catalog.RefreshInterval.Duration <= 0 {
		errs = append(errs, "catalog: refresh_interval must be > 0")
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 {
			if !c.Redis.Enabled {
				errs = append(errs, "server: rate_limit requires redis to be enabled")
			}
			if c.Server.RateWindow.Duration <= 0 {
				errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
