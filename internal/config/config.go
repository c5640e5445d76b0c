// Package config defines the top-level configuration for the searcher and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SEARCHER_* environment variables.
type Config struct {
	Chain     ChainConfig     `toml:"chain"`
	Wallet    WalletConfig    `toml:"wallet"`
	Relay     RelayConfig     `toml:"relay"`
	FlashLoan FlashLoanConfig `toml:"flashloan"`
	Venues    VenuesConfig    `toml:"venues"`
	Scorer    ScorerConfig    `toml:"scorer"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Bundle    BundleConfig    `toml:"bundle"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Archive   ArchiveConfig   `toml:"archive"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// ChainConfig holds Ethereum node endpoints and chain parameters.
type ChainConfig struct {
	RPCURL  string `toml:"rpc_url"`
	WSURL   string `toml:"ws_url"`
	ChainID int64  `toml:"chain_id"`
}

// WalletConfig holds the executing account's signing key material. Either a
// raw hex key or an encrypted key file plus password must be supplied.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// RelayConfig holds the bundle relay endpoint and its request-signing key.
type RelayConfig struct {
	URL     string `toml:"url"`
	AuthKey string `toml:"auth_key"`
}

// FlashLoanConfig holds the on-chain flash-loan contract parameters and the
// loan sizing policy.
type FlashLoanConfig struct {
	// Contract is the flash-loan contract address.
	Contract string `toml:"contract"`
	// Asset is the token borrowed and traded.
	Asset string `toml:"asset"`
	// LoanMultiplier scales the estimated profit into a loan principal.
	LoanMultiplier int64 `toml:"loan_multiplier"`
	// MaxLoanCapWei is the hard ceiling on the loan principal, as a decimal
	// wei string.
	MaxLoanCapWei string `toml:"max_loan_cap_wei"`
}

// VenuesConfig names the two liquidity venues whose implied prices are
// compared for the configured asset pair.
type VenuesConfig struct {
	PrimaryName   string `toml:"primary_name"`
	PrimaryPair   string `toml:"primary_pair"`
	SecondaryName string `toml:"secondary_name"`
	SecondaryPair string `toml:"secondary_pair"`
}

// ScorerConfig holds opportunity scoring thresholds.
type ScorerConfig struct {
	// PriceGapBps is the minimum relative venue price gap, in basis points.
	PriceGapBps float64 `toml:"price_gap_bps"`
	// TradeNotionalWei is the reference trade size used to turn a relative
	// gap into an absolute profit estimate, as a decimal wei string.
	TradeNotionalWei string `toml:"trade_notional_wei"`
	// MinProfitWei is the absolute profit floor, as a decimal wei string.
	MinProfitWei string `toml:"min_profit_wei"`
	// ConfidenceThreshold gates submission; an opportunity must score
	// strictly above it.
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	// InferenceURL, when set, routes confidence scoring through the external
	// inference service instead of the built-in heuristic.
	InferenceURL string `toml:"inference_url"`
	// ScoreTimeout bounds a single scoring call end to end.
	ScoreTimeout duration `toml:"score_timeout"`
}

// MonitorConfig holds mempool intake parameters.
type MonitorConfig struct {
	// QueueSize bounds the pending-hash intake channel; when full, the
	// oldest queued hash is dropped.
	QueueSize int `toml:"queue_size"`
	// Workers is the number of concurrent scoring workers.
	Workers int `toml:"workers"`
	// HealthInterval is the liveness/resync tick period.
	HealthInterval duration `toml:"health_interval"`
}

// BundleConfig holds bundle construction parameters.
type BundleConfig struct {
	// GasLimit is the fixed gas limit for the flash-loan transaction.
	GasLimit uint64 `toml:"gas_limit"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// S3Config holds S3-compatible object storage parameters. Leave Bucket empty
// to disable archiving.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls history archival to object storage.
type ArchiveConfig struct {
	Interval      duration `toml:"interval"`
	RetentionDays int      `toml:"retention_days"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "10s", "5m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "10s" or "5m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration baseline. Values here match the
// documented policy defaults; anything secret is intentionally empty.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:  "http://localhost:8545",
			WSURL:   "ws://localhost:8546",
			ChainID: 1,
		},
		Relay: RelayConfig{
			URL: "https://relay.flashbots.net",
		},
		FlashLoan: FlashLoanConfig{
			LoanMultiplier: 10,
			MaxLoanCapWei:  "100000000000000000000", // 100 ether
		},
		Venues: VenuesConfig{
			PrimaryName:   "uniswap_v2",
			SecondaryName: "sushiswap",
		},
		Scorer: ScorerConfig{
			PriceGapBps:         100, // 1%
			TradeNotionalWei:    "1000000000000000000",
			MinProfitWei:        "10000000000000000",
			ConfidenceThreshold: 0.85,
			ScoreTimeout:        duration{5 * time.Second},
		},
		Monitor: MonitorConfig{
			QueueSize:      1024,
			Workers:        8,
			HealthInterval: duration{10 * time.Second},
		},
		Bundle: BundleConfig{
			GasLimit: 3_000_000,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "searcher",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:         "us-east-1",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Interval:      duration{24 * time.Hour},
			RetentionDays: 30,
		},
		Mode:     "watch",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"search": true,
	"watch":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for internal consistency and returns a
// combined error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: search, watch)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.WSURL == "" {
		errs = append(errs, "chain: ws_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}

	// Submission credentials are only required in search mode; watch mode
	// never builds or submits bundles.
	if strings.ToLower(c.Mode) == "search" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for search mode")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
		if c.Relay.URL == "" {
			errs = append(errs, "relay: url must not be empty for search mode")
		}
		if c.Relay.AuthKey == "" {
			errs = append(errs, "relay: auth_key must not be empty for search mode")
		}
		if c.FlashLoan.Contract == "" {
			errs = append(errs, "flashloan: contract must not be empty for search mode")
		}
		if c.FlashLoan.Asset == "" {
			errs = append(errs, "flashloan: asset must not be empty for search mode")
		}
	}

	if c.FlashLoan.LoanMultiplier <= 0 {
		errs = append(errs, "flashloan: loan_multiplier must be positive")
	}
	if !validWei(c.FlashLoan.MaxLoanCapWei) {
		errs = append(errs, "flashloan: max_loan_cap_wei must be a positive decimal integer")
	}

	if c.Venues.PrimaryPair == "" || c.Venues.SecondaryPair == "" {
		errs = append(errs, "venues: primary_pair and secondary_pair must both be set")
	}
	if c.Venues.PrimaryName == c.Venues.SecondaryName {
		errs = append(errs, "venues: primary_name and secondary_name must differ")
	}

	if c.Scorer.PriceGapBps <= 0 {
		errs = append(errs, "scorer: price_gap_bps must be positive")
	}
	if c.Scorer.ConfidenceThreshold < 0 || c.Scorer.ConfidenceThreshold > 1 {
		errs = append(errs, "scorer: confidence_threshold must be in [0,1]")
	}
	if !validWei(c.Scorer.TradeNotionalWei) || !validWei(c.Scorer.MinProfitWei) {
		errs = append(errs, "scorer: trade_notional_wei and min_profit_wei must be positive decimal integers")
	}
	if c.Scorer.ScoreTimeout.Duration <= 0 {
		errs = append(errs, "scorer: score_timeout must be positive")
	}

	if c.Monitor.QueueSize <= 0 {
		errs = append(errs, "monitor: queue_size must be positive")
	}
	if c.Monitor.Workers <= 0 {
		errs = append(errs, "monitor: workers must be positive")
	}
	if c.Monitor.HealthInterval.Duration <= 0 {
		errs = append(errs, "monitor: health_interval must be positive")
	}

	if c.Bundle.GasLimit == 0 {
		errs = append(errs, "bundle: gas_limit must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validWei reports whether s is a non-empty decimal integer greater than zero.
func validWei(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	nonZero := false
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
		if r != '0' {
			nonZero = true
		}
	}
	return nonZero
}
