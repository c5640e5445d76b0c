package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/calderw/mevsearcher/internal/blob/s3"
	"github.com/calderw/mevsearcher/internal/bundle"
	"github.com/calderw/mevsearcher/internal/cache/redis"
	"github.com/calderw/mevsearcher/internal/chain"
	"github.com/calderw/mevsearcher/internal/config"
	"github.com/calderw/mevsearcher/internal/crypto"
	"github.com/calderw/mevsearcher/internal/domain"
	"github.com/calderw/mevsearcher/internal/nonce"
	"github.com/calderw/mevsearcher/internal/notify"
	"github.com/calderw/mevsearcher/internal/relay"
	"github.com/calderw/mevsearcher/internal/scorer"
	"github.com/calderw/mevsearcher/internal/store/postgres"
	"github.com/calderw/mevsearcher/internal/venue"
)

// Cache TTLs. Reserves go stale within a block; seen hashes outlive any
// realistic mempool residency.
const (
	reserveTTL = 6 * time.Second
	seenTTL    = 30 * time.Minute
)

// Dependencies bundles everything the operating modes need. Optional members
// (stores, caches, archiver, notifier, submission path) are nil when their
// backing service is not configured.
type Dependencies struct {
	Chain   *chain.Client
	ChainID *big.Int
	Stream  *chain.PendingStream

	Scorer scorer.Scorer

	Wallet    *chain.Wallet
	Builder   *bundle.Builder
	Submitter *relay.Submitter
	Nonces    *nonce.Tracker

	OpportunityStore domain.OpportunityStore
	SubmissionStore  domain.SubmissionStore
	SeenCache        domain.SeenCache
	ReserveCache     domain.ReserveCache
	LockManager      domain.LockManager

	Archiver *s3blob.Archiver
	Notifier *notify.Notifier
}

// Wire constructs the concrete dependency graph from the configuration and
// returns it with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	deps := &Dependencies{}

	// Chain client and pending stream.
	chainClient, chainID, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return fail(fmt.Errorf("dial chain rpc: %w", err))
	}
	closers = append(closers, chainClient.Close)
	if chainID.Int64() != cfg.Chain.ChainID {
		return fail(fmt.Errorf("chain id mismatch: node reports %s, config says %d", chainID, cfg.Chain.ChainID))
	}
	deps.Chain = chainClient
	deps.ChainID = chainID
	deps.Stream = chain.NewPendingStream(cfg.Chain.WSURL, cfg.Monitor.QueueSize, logger)

	// Redis caches. Optional; without them dedup falls back to nothing and
	// every price read hits the chain.
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("connect redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SeenCache = redis.NewSeenCache(redisClient, seenTTL)
		deps.ReserveCache = redis.NewReserveCache(redisClient, reserveTTL)
		deps.LockManager = redis.NewLockManager(redisClient)
	}

	// Postgres stores. Optional; without them history is not recorded.
	if cfg.Postgres.DSN != "" || cfg.Postgres.Database != "" {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("connect postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("run migrations: %w", err))
			}
		}

		deps.OpportunityStore = postgres.NewOpportunityStore(pgClient.Pool())
		deps.SubmissionStore = postgres.NewSubmissionStore(pgClient.Pool())
	}

	// S3 archiver. Only meaningful with stores to archive from.
	if cfg.S3.Bucket != "" && deps.OpportunityStore != nil {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("connect s3: %w", err))
		}
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.OpportunityStore,
			deps.SubmissionStore,
		)
	}

	// Notifications.
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	// Venues and scorer.
	primary := venue.NewPairVenue(
		cfg.Venues.PrimaryName,
		common.HexToAddress(cfg.Venues.PrimaryPair),
		common.HexToAddress(cfg.FlashLoan.Asset),
		chainClient,
		deps.ReserveCache,
		logger,
	)
	secondary := venue.NewPairVenue(
		cfg.Venues.SecondaryName,
		common.HexToAddress(cfg.Venues.SecondaryPair),
		common.HexToAddress(cfg.FlashLoan.Asset),
		chainClient,
		deps.ReserveCache,
		logger,
	)

	notional, ok := new(big.Int).SetString(cfg.Scorer.TradeNotionalWei, 10)
	if !ok {
		return fail(fmt.Errorf("bad trade_notional_wei %q", cfg.Scorer.TradeNotionalWei))
	}
	minProfit, ok := new(big.Int).SetString(cfg.Scorer.MinProfitWei, 10)
	if !ok {
		return fail(fmt.Errorf("bad min_profit_wei %q", cfg.Scorer.MinProfitWei))
	}

	confidence := scorer.RuleConfidence(cfg.Scorer.PriceGapBps)
	if cfg.Scorer.InferenceURL != "" {
		confidence = scorer.NewInferenceClient(cfg.Scorer.InferenceURL).Confidence
	}
	deps.Scorer = scorer.NewVenueScorer(primary, secondary, scorer.Params{
		GapThresholdBps: cfg.Scorer.PriceGapBps,
		TradeNotional:   notional,
		MinProfit:       minProfit,
	}, confidence, logger)

	// Submission path, search mode only.
	if strings.ToLower(cfg.Mode) == "search" {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return fail(fmt.Errorf("load wallet key: %w", err))
		}

		wallet, err := chain.NewWallet(keyHex, cfg.Chain.ChainID)
		if err != nil {
			return fail(err)
		}
		deps.Wallet = wallet

		maxCap, ok := new(big.Int).SetString(cfg.FlashLoan.MaxLoanCapWei, 10)
		if !ok {
			return fail(fmt.Errorf("bad max_loan_cap_wei %q", cfg.FlashLoan.MaxLoanCapWei))
		}
		deps.Builder = bundle.NewBuilder(bundle.Params{
			Contract:       common.HexToAddress(cfg.FlashLoan.Contract),
			Asset:          common.HexToAddress(cfg.FlashLoan.Asset),
			LoanMultiplier: cfg.FlashLoan.LoanMultiplier,
			MaxLoanCap:     maxCap,
			GasLimit:       cfg.Bundle.GasLimit,
		}, chainClient, wallet, nil, logger)

		relayClient, err := relay.NewClient(cfg.Relay.URL, cfg.Relay.AuthKey, logger)
		if err != nil {
			return fail(err)
		}
		deps.Submitter = relay.NewSubmitter(relayClient, logger)

		tracker, err := nonce.NewTracker(ctx, chainClient, wallet.Address(), logger)
		if err != nil {
			return fail(err)
		}
		deps.Nonces = tracker
	}

	return deps, cleanup, nil
}
