package config

import "strings"

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Telegram
	out.Telegram = cfg.Telegram
	redact(&out.Telegram.BotToken)

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Server
	out.Server = cfg.Server
	redact(&out.Server.APIKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}
	if cfg.Aave.Networks != nil {
		out.Aave.Networks = make([]AaveNetworkConfig, len(cfg.Aave.Networks))
		copy(out.Aave.Networks, cfg.Aave.Networks)
		for i, n := range cfg.Aave.Networks {
			// RPC endpoint URLs often embed provider API keys.
			out.Aave.Networks[i].RPCEndpoints = make([]string, len(n.RPCEndpoints))
			for j := range n.RPCEndpoints {
				out.Aave.Networks[i].RPCEndpoints[j] = redactedURL(n.RPCEndpoints[j])
			}
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redaction placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

// redactedURL keeps the scheme and host of an endpoint visible while hiding
// any path component, which is where providers put per-project keys.
func redactedURL(raw string) string {
	rest := raw
	prefix := ""
	if i := strings.Index(raw, "://"); i >= 0 {
		prefix = raw[:i+3]
		rest = raw[i+3:]
	}
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		return prefix + rest[:j] + "/" + redacted
	}
	return raw
}
