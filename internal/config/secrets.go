package config

const redacted = "***"

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	if out.Wallet.PrivateKey != "" {
		out.Wallet.PrivateKey = redacted
	}
	if out.Wallet.KeyPassword != "" {
		out.Wallet.KeyPassword = redacted
	}
	if out.Relay.AuthKey != "" {
		out.Relay.AuthKey = redacted
	}
	if out.Postgres.DSN != "" {
		out.Postgres.DSN = redacted
	}
	if out.Postgres.Password != "" {
		out.Postgres.Password = redacted
	}
	if out.Redis.Password != "" {
		out.Redis.Password = redacted
	}
	if out.S3.AccessKey != "" {
		out.S3.AccessKey = redacted
	}
	if out.S3.SecretKey != "" {
		out.S3.SecretKey = redacted
	}
	if out.Notify.TelegramToken != "" {
		out.Notify.TelegramToken = redacted
	}
	if out.Notify.DiscordWebhookURL != "" {
		out.Notify.DiscordWebhookURL = redacted
	}

	return out
}
