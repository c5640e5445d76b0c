package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/calderw/mevsearcher/internal/monitor"
)

// submitLockKey is the distributed-lock key replicas contend on; all replicas
// of one deployment share one signing account.
const submitLockKey = "searcher:submit"

// SearchMode runs the full pipeline: pending stream, scoring workers, and the
// bundle submission path.
func (a *App) SearchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting search mode",
		slog.String("account", deps.Wallet.Address().Hex()),
	)
	return a.runPipeline(ctx, deps, false)
}

// WatchMode runs detection only: opportunities are scored and recorded but no
// bundle is ever built or submitted.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")
	return a.runPipeline(ctx, deps, true)
}

func (a *App) runPipeline(ctx context.Context, deps *Dependencies, dryRun bool) error {
	params := monitor.Params{
		Workers:             a.cfg.Monitor.Workers,
		ScoreTimeout:        a.cfg.Scorer.ScoreTimeout.Duration,
		ConfidenceThreshold: a.cfg.Scorer.ConfidenceThreshold,
		HealthInterval:      a.cfg.Monitor.HealthInterval.Duration,
		DryRun:              dryRun,
	}
	if !dryRun && deps.LockManager != nil {
		params.LockKey = submitLockKey
	}

	var nonces monitor.NonceSource
	if deps.Nonces != nil {
		nonces = deps.Nonces
	}
	var builder monitor.BundleBuilder
	if deps.Builder != nil {
		builder = deps.Builder
	}
	var submitter monitor.BundleSubmitter
	if deps.Submitter != nil {
		submitter = deps.Submitter
	}
	var notifier monitor.Notifier
	if deps.Notifier != nil {
		notifier = deps.Notifier
	}

	mon := monitor.New(
		deps.Stream.Hashes(),
		deps.Chain,
		deps.Scorer,
		builder,
		submitter,
		nonces,
		deps.OpportunityStore,
		deps.SubmissionStore,
		deps.SeenCache,
		deps.LockManager,
		notifier,
		params,
		a.logger,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return deps.Stream.Run(gctx)
	})
	g.Go(func() error {
		return mon.Run(gctx)
	})
	if deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveLoop(gctx, deps)
		})
	}

	return g.Wait()
}

// archiveLoop periodically exports aged history to object storage and prunes
// the primary store once the upload succeeded.
func (a *App) archiveLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Archive.Interval.Duration
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retention)

			oppCount, err := deps.Archiver.ArchiveOpportunities(ctx, cutoff)
			if err != nil {
				a.logger.Warn("opportunity archive failed", slog.String("error", err.Error()))
				continue
			}
			subCount, err := deps.Archiver.ArchiveSubmissions(ctx, cutoff)
			if err != nil {
				a.logger.Warn("submission archive failed", slog.String("error", err.Error()))
				continue
			}

			// Prune only after both uploads landed.
			if oppCount > 0 {
				if _, err := deps.OpportunityStore.DeleteBefore(ctx, cutoff); err != nil {
					a.logger.Warn("opportunity prune failed", slog.String("error", err.Error()))
				}
			}
			if subCount > 0 {
				if _, err := deps.SubmissionStore.DeleteBefore(ctx, cutoff); err != nil {
					a.logger.Warn("submission prune failed", slog.String("error", err.Error()))
				}
			}

			a.logger.Info("archive cycle complete",
				slog.Int64("opportunities", oppCount),
				slog.Int64("submissions", subCount),
				slog.Time("cutoff", cutoff),
			)
		}
	}
}
