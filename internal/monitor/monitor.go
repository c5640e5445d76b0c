// Package monitor drives the pipeline: it drains the pending-hash intake,
// scores candidates, and walks profitable ones through the bundle and relay
// path.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/calderw/mevsearcher/internal/domain"
	"github.com/calderw/mevsearcher/internal/relay"
	"github.com/calderw/mevsearcher/internal/scorer"
)

// submitLockTTL bounds how long a replica may hold the account submission
// lock if it dies mid-flight.
const submitLockTTL = 30 * time.Second

// TxFetcher resolves a pending hash to its full transaction.
type TxFetcher interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// BundleBuilder assembles a signed bundle for an opportunity.
type BundleBuilder interface {
	Build(ctx context.Context, opp domain.Opportunity, victim *types.Transaction, targetBlock, nonce uint64) (domain.SignedBundle, error)
}

// BundleSubmitter runs the simulate-then-submit gate.
type BundleSubmitter interface {
	Run(ctx context.Context, bundle domain.SignedBundle) (relay.Outcome, error)
}

// NonceSource is the account nonce lifecycle the monitor drives.
type NonceSource interface {
	Reserve() uint64
	Commit()
	Resync(ctx context.Context) (uint64, error)
}

// Notifier publishes operational events.
type Notifier interface {
	Notify(ctx context.Context, event string, fields map[string]string)
}

// Params holds the monitor's runtime knobs.
type Params struct {
	// Workers is the number of concurrent scoring workers.
	Workers int
	// ScoreTimeout bounds one scoring call.
	ScoreTimeout time.Duration
	// ConfidenceThreshold gates submission; strictly-greater wins.
	ConfidenceThreshold float64
	// HealthInterval is the liveness/resync tick period.
	HealthInterval time.Duration
	// DryRun disables the submission path; opportunities are only recorded.
	DryRun bool
	// LockKey is the distributed-lock key for the submission path. Empty
	// disables distributed locking.
	LockKey string
}

// Monitor coordinates the scoring workers and the single-flight submission
// path. Optional collaborators (stores, caches, locks, notifier) may be nil;
// the pipeline degrades rather than depends.
type Monitor struct {
	hashes  <-chan common.Hash
	fetcher TxFetcher
	scorer  scorer.Scorer

	builder   BundleBuilder
	submitter BundleSubmitter
	nonces    NonceSource

	opps     domain.OpportunityStore
	subs     domain.SubmissionStore
	seen     domain.SeenCache
	locks    domain.LockManager
	notifier Notifier

	params Params
	logger *slog.Logger

	// submitCh serialises the submission path: one bundle in flight at a
	// time, strictly ordered, while scoring stays parallel.
	submitCh chan submitJob

	ticks uint64
}

type submitJob struct {
	opp    domain.Opportunity
	victim *types.Transaction
}

// New builds a Monitor. builder, submitter, and nonces may be nil together
// for watch-only operation; Params.DryRun must then be true.
func New(
	hashes <-chan common.Hash,
	fetcher TxFetcher,
	sc scorer.Scorer,
	builder BundleBuilder,
	submitter BundleSubmitter,
	nonces NonceSource,
	opps domain.OpportunityStore,
	subs domain.SubmissionStore,
	seen domain.SeenCache,
	locks domain.LockManager,
	notifier Notifier,
	params Params,
	logger *slog.Logger,
) *Monitor {
	return &Monitor{
		hashes:    hashes,
		fetcher:   fetcher,
		scorer:    sc,
		builder:   builder,
		submitter: submitter,
		nonces:    nonces,
		opps:      opps,
		subs:      subs,
		seen:      seen,
		locks:     locks,
		notifier:  notifier,
		params:    params,
		logger:    logger.With(slog.String("component", "monitor")),
		submitCh:  make(chan submitJob, 1),
	}
}

// Run starts the scoring workers, the submission loop, and the health ticker,
// and blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < m.params.Workers; i++ {
		g.Go(func() error {
			return m.scoreLoop(gctx)
		})
	}
	g.Go(func() error {
		return m.submitLoop(gctx)
	})
	g.Go(func() error {
		return m.healthLoop(gctx)
	})

	return g.Wait()
}

// scoreLoop drains the intake channel and evaluates each hash once.
func (m *Monitor) scoreLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case hash, ok := <-m.hashes:
			if !ok {
				return nil
			}
			m.handleHash(ctx, hash)
		}
	}
}

func (m *Monitor) handleHash(ctx context.Context, hash common.Hash) {
	if m.seen != nil {
		first, err := m.seen.MarkSeen(ctx, hash)
		if err != nil {
			m.logger.Warn("seen cache unavailable", slog.String("error", err.Error()))
		} else if !first {
			return
		}
	}

	tx, err := m.fetcher.TransactionByHash(ctx, hash)
	if err != nil {
		if !errors.Is(err, domain.ErrTxUnavailable) {
			m.logger.Debug("tx fetch failed",
				slog.String("tx_hash", hash.Hex()),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	// Plain value transfers cannot move a pool price.
	if tx.To() == nil || len(tx.Data()) == 0 {
		return
	}

	scoreCtx, cancel := context.WithTimeout(ctx, m.params.ScoreTimeout)
	opp, err := m.scorer.Score(scoreCtx, tx)
	cancel()
	if err != nil {
		m.logger.Warn("scoring failed",
			slog.String("tx_hash", hash.Hex()),
			slog.String("error", err.Error()),
		)
		return
	}
	if !opp.Profitable {
		return
	}

	m.logger.Info("opportunity detected",
		slog.String("opportunity_id", opp.ID),
		slog.String("tx_hash", opp.TxHash.Hex()),
		slog.String("estimated_profit", opp.EstimatedProfit.String()),
		slog.Float64("confidence", opp.Confidence),
		slog.Float64("gap_bps", opp.GapBps),
		slog.String("buy_venue", opp.BuyVenue),
		slog.String("sell_venue", opp.SellVenue),
	)

	if m.opps != nil {
		if err := m.opps.Insert(ctx, opp); err != nil {
			m.logger.Warn("opportunity insert failed",
				slog.String("opportunity_id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if opp.Confidence <= m.params.ConfidenceThreshold {
		m.logger.Warn("opportunity below confidence gate",
			slog.String("opportunity_id", opp.ID),
			slog.Float64("confidence", opp.Confidence),
			slog.Float64("threshold", m.params.ConfidenceThreshold),
		)
		return
	}

	if m.params.DryRun {
		return
	}

	select {
	case m.submitCh <- submitJob{opp: opp, victim: tx}:
	default:
		// A bundle is already in flight; this opportunity is stale by the
		// time the path frees up.
		m.logger.Info("submission path busy, dropping opportunity",
			slog.String("opportunity_id", opp.ID),
		)
	}
}

// submitLoop walks queued opportunities through build, simulate, and submit,
// one at a time.
func (m *Monitor) submitLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-m.submitCh:
			m.submit(ctx, job)
		}
	}
}

func (m *Monitor) submit(ctx context.Context, job submitJob) {
	if m.locks != nil && m.params.LockKey != "" {
		unlock, err := m.locks.Acquire(ctx, m.params.LockKey, submitLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				m.logger.Info("submission lock held elsewhere, skipping",
					slog.String("opportunity_id", job.opp.ID),
				)
			} else {
				m.logger.Warn("submission lock unavailable",
					slog.String("error", err.Error()),
				)
			}
			return
		}
		defer unlock()
	}

	head, err := m.fetcher.BlockNumber(ctx)
	if err != nil {
		m.logger.Warn("block number fetch failed", slog.String("error", err.Error()))
		return
	}
	targetBlock := head + 1

	nonce := m.nonces.Reserve()
	bundle, err := m.builder.Build(ctx, job.opp, job.victim, targetBlock, nonce)
	if err != nil {
		m.logger.Warn("bundle build failed",
			slog.String("opportunity_id", job.opp.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	outcome, err := m.submitter.Run(ctx, bundle)
	if err != nil {
		// Relay transport trouble; the nonce was never consumed.
		m.logger.Error("relay unreachable",
			slog.String("opportunity_id", job.opp.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	sub := domain.Submission{
		ID:            uuid.NewString(),
		OpportunityID: job.opp.ID,
		BundleHash:    outcome.BundleHash,
		TargetBlock:   targetBlock,
		Nonce:         nonce,
		SubmittedAt:   time.Now().UTC(),
	}

	if outcome.Submitted {
		sub.Status = domain.SubmissionSubmitted
		m.nonces.Commit()
		if m.opps != nil {
			if err := m.opps.MarkSubmitted(ctx, job.opp.ID); err != nil {
				m.logger.Warn("mark submitted failed",
					slog.String("opportunity_id", job.opp.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		m.notify(ctx, "bundle_submitted", map[string]string{
			"opportunity_id": job.opp.ID,
			"bundle_hash":    outcome.BundleHash,
			"target_block":   strconv.FormatUint(targetBlock, 10),
		})
	} else {
		sub.Status = domain.SubmissionRejected
		sub.SimError = outcome.SimError
		m.notify(ctx, "bundle_rejected", map[string]string{
			"opportunity_id": job.opp.ID,
			"sim_error":      outcome.SimError,
		})
	}

	if m.subs != nil {
		if err := m.subs.Insert(ctx, sub); err != nil {
			m.logger.Warn("submission insert failed",
				slog.String("submission_id", sub.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// healthLoop emits a liveness line and reconciles the nonce on each tick.
func (m *Monitor) healthLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.params.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.ticks++
			m.logger.Info("monitor alive", slog.Uint64("ticks", m.ticks))

			if m.nonces == nil {
				continue
			}
			before := m.nonces.Reserve()
			after, err := m.nonces.Resync(ctx)
			if err != nil {
				m.logger.Warn("nonce resync failed", slog.String("error", err.Error()))
				continue
			}
			if after != before {
				m.notify(ctx, "nonce_resynced", map[string]string{
					"from": strconv.FormatUint(before, 10),
					"to":   strconv.FormatUint(after, 10),
				})
			}
		}
	}
}

func (m *Monitor) notify(ctx context.Context, event string, fields map[string]string) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(ctx, event, fields)
}
