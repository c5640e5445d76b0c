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
// built-in defaults, applies SEARCHER_* environment variable overrides, and
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

// applyEnvOverrides reads well-known SEARCHER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "SEARCHER_CHAIN_RPC_URL")
	setStr(&cfg.Chain.WSURL, "SEARCHER_CHAIN_WS_URL")
	setInt64(&cfg.Chain.ChainID, "SEARCHER_CHAIN_ID")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "SEARCHER_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "SEARCHER_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "SEARCHER_WALLET_KEY_PASSWORD")

	// ── Relay ──
	setStr(&cfg.Relay.URL, "SEARCHER_RELAY_URL")
	setStr(&cfg.Relay.AuthKey, "SEARCHER_RELAY_AUTH_KEY")

	// ── Flash loan ──
	setStr(&cfg.FlashLoan.Contract, "SEARCHER_FLASHLOAN_CONTRACT")
	setStr(&cfg.FlashLoan.Asset, "SEARCHER_FLASHLOAN_ASSET")
	setInt64(&cfg.FlashLoan.LoanMultiplier, "SEARCHER_FLASHLOAN_LOAN_MULTIPLIER")
	setStr(&cfg.FlashLoan.MaxLoanCapWei, "SEARCHER_FLASHLOAN_MAX_LOAN_CAP_WEI")

	// ── Venues ──
	setStr(&cfg.Venues.PrimaryName, "SEARCHER_VENUES_PRIMARY_NAME")
	setStr(&cfg.Venues.PrimaryPair, "SEARCHER_VENUES_PRIMARY_PAIR")
	setStr(&cfg.Venues.SecondaryName, "SEARCHER_VENUES_SECONDARY_NAME")
	setStr(&cfg.Venues.SecondaryPair, "SEARCHER_VENUES_SECONDARY_PAIR")

	// ── Scorer ──
	setFloat64(&cfg.Scorer.PriceGapBps, "SEARCHER_SCORER_PRICE_GAP_BPS")
	setStr(&cfg.Scorer.TradeNotionalWei, "SEARCHER_SCORER_TRADE_NOTIONAL_WEI")
	setStr(&cfg.Scorer.MinProfitWei, "SEARCHER_SCORER_MIN_PROFIT_WEI")
	setFloat64(&cfg.Scorer.ConfidenceThreshold, "SEARCHER_SCORER_CONFIDENCE_THRESHOLD")
	setStr(&cfg.Scorer.InferenceURL, "SEARCHER_SCORER_INFERENCE_URL")
	setDuration(&cfg.Scorer.ScoreTimeout, "SEARCHER_SCORER_SCORE_TIMEOUT")

	// ── Monitor ──
	setInt(&cfg.Monitor.QueueSize, "SEARCHER_MONITOR_QUEUE_SIZE")
	setInt(&cfg.Monitor.Workers, "SEARCHER_MONITOR_WORKERS")
	setDuration(&cfg.Monitor.HealthInterval, "SEARCHER_MONITOR_HEALTH_INTERVAL")

	// ── Bundle ──
	setUint64(&cfg.Bundle.GasLimit, "SEARCHER_BUNDLE_GAS_LIMIT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SEARCHER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SEARCHER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SEARCHER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SEARCHER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SEARCHER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SEARCHER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SEARCHER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SEARCHER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SEARCHER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SEARCHER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SEARCHER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SEARCHER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SEARCHER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SEARCHER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SEARCHER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SEARCHER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SEARCHER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SEARCHER_S3_REGION")
	setStr(&cfg.S3.Bucket, "SEARCHER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SEARCHER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SEARCHER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SEARCHER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SEARCHER_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setDuration(&cfg.Archive.Interval, "SEARCHER_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "SEARCHER_ARCHIVE_RETENTION_DAYS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SEARCHER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SEARCHER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SEARCHER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SEARCHER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SEARCHER_MODE")
	setStr(&cfg.LogLevel, "SEARCHER_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
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
