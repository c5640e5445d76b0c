package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/calderw/mevsearcher/internal/domain"
)

// BundleRelay is the relay surface the submitter depends on.
type BundleRelay interface {
	Simulate(ctx context.Context, bundle domain.SignedBundle) (domain.SimulationResult, error)
	Submit(ctx context.Context, bundle domain.SignedBundle) (string, error)
}

// Outcome is the result of one simulate-then-submit attempt.
type Outcome struct {
	// Submitted reports whether the bundle reached the relay. False means
	// simulation rejected it and nothing was sent.
	Submitted bool

	// BundleHash is the relay identifier for submitted bundles.
	BundleHash string

	// SimError carries the simulation failure for rejected bundles.
	SimError string
}

// Submitter enforces the simulation gate: a bundle is only sent when its
// simulation comes back clean.
type Submitter struct {
	relay  BundleRelay
	logger *slog.Logger
}

// NewSubmitter builds a Submitter over a relay client.
func NewSubmitter(relay BundleRelay, logger *slog.Logger) *Submitter {
	return &Submitter{
		relay:  relay,
		logger: logger.With(slog.String("component", "submitter")),
	}
}

// Run simulates and, on a clean result, submits. Transport failures on either
// call are returned as errors; a dirty simulation is a normal Outcome, not an
// error.
func (s *Submitter) Run(ctx context.Context, bundle domain.SignedBundle) (Outcome, error) {
	sim, err := s.relay.Simulate(ctx, bundle)
	if err != nil {
		return Outcome{}, fmt.Errorf("simulate bundle for block %d: %w", bundle.TargetBlock, err)
	}
	if sim.Failed() {
		s.logger.Warn("bundle rejected at simulation",
			slog.Uint64("target_block", bundle.TargetBlock),
			slog.Uint64("nonce", bundle.Nonce),
			slog.String("sim_error", sim.Err),
		)
		return Outcome{SimError: sim.Err}, nil
	}

	hash, err := s.relay.Submit(ctx, bundle)
	if err != nil {
		return Outcome{}, fmt.Errorf("submit bundle for block %d: %w", bundle.TargetBlock, err)
	}

	s.logger.Info("bundle submitted",
		slog.Uint64("target_block", bundle.TargetBlock),
		slog.Uint64("nonce", bundle.Nonce),
		slog.String("bundle_hash", hash),
	)
	return Outcome{Submitted: true, BundleHash: hash}, nil
}
