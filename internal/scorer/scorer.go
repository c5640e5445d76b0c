// Package scorer turns pending transactions into scored arbitrage
// opportunities by comparing implied prices across liquidity venues.
package scorer

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/calderw/mevsearcher/internal/domain"
	"github.com/calderw/mevsearcher/internal/venue"
)

// Scorer evaluates a pending transaction and returns an opportunity verdict.
// Implementations must be safe for concurrent use.
type Scorer interface {
	Score(ctx context.Context, tx *types.Transaction) (domain.Opportunity, error)
}

// ConfidenceFunc maps a provisional opportunity to a confidence in [0,1].
type ConfidenceFunc func(ctx context.Context, opp domain.Opportunity) (float64, error)

// Params holds the scoring thresholds.
type Params struct {
	// GapThresholdBps is the minimum relative price gap, in basis points.
	GapThresholdBps float64
	// TradeNotional is the reference trade size in wei used to convert a
	// relative gap into an absolute profit estimate.
	TradeNotional *big.Int
	// MinProfit is the absolute profit floor in wei.
	MinProfit *big.Int
}

// VenueScorer compares the implied price of the configured pair across two
// venues. A pending swap on either venue moves one price relative to the
// other; when the gap clears the threshold and the implied profit clears the
// floor, the transaction is scored profitable.
type VenueScorer struct {
	primary    venue.Venue
	secondary  venue.Venue
	params     Params
	confidence ConfidenceFunc
	logger     *slog.Logger
}

var _ Scorer = (*VenueScorer)(nil)

// NewVenueScorer builds a scorer over the two venues. confidence must not be
// nil; use RuleConfidence for the built-in heuristic.
func NewVenueScorer(primary, secondary venue.Venue, params Params, confidence ConfidenceFunc, logger *slog.Logger) *VenueScorer {
	return &VenueScorer{
		primary:    primary,
		secondary:  secondary,
		params:     params,
		confidence: confidence,
		logger:     logger.With(slog.String("component", "scorer")),
	}
}

// Score reads both venue prices in parallel and compares them. Venue read
// failures produce a non-profitable zero-confidence verdict rather than an
// error; a venue being briefly unreadable is routine, not exceptional.
func (s *VenueScorer) Score(ctx context.Context, tx *types.Transaction) (domain.Opportunity, error) {
	opp := domain.Opportunity{
		ID:              uuid.NewString(),
		TxHash:          tx.Hash(),
		EstimatedProfit: big.NewInt(0),
		DetectedAt:      time.Now().UTC(),
	}

	var primaryPrice, secondaryPrice *big.Float
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		primaryPrice, err = s.primary.Price(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		secondaryPrice, err = s.secondary.Price(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Debug("venue price read failed",
			slog.String("tx_hash", opp.TxHash.Hex()),
			slog.String("error", err.Error()),
		)
		return opp, nil
	}

	gapBps, buyPrimary := priceGapBps(primaryPrice, secondaryPrice)
	opp.GapBps = gapBps
	if buyPrimary {
		opp.BuyVenue, opp.SellVenue = s.primary.Name(), s.secondary.Name()
	} else {
		opp.BuyVenue, opp.SellVenue = s.secondary.Name(), s.primary.Name()
	}

	if gapBps < s.params.GapThresholdBps {
		return opp, nil
	}

	profit := profitEstimate(s.params.TradeNotional, gapBps)
	if profit.Cmp(s.params.MinProfit) < 0 {
		return opp, nil
	}

	opp.Profitable = true
	opp.EstimatedProfit = profit

	conf, err := s.confidence(ctx, opp)
	if err != nil {
		s.logger.Warn("confidence scoring failed",
			slog.String("tx_hash", opp.TxHash.Hex()),
			slog.String("error", err.Error()),
		)
		opp.Confidence = 0
		return opp, nil
	}
	opp.Confidence = conf
	return opp, nil
}

// priceGapBps returns the relative gap between the two prices in basis points
// against their midpoint, and whether the primary venue is the cheaper side.
func priceGapBps(primary, secondary *big.Float) (float64, bool) {
	diff := new(big.Float).Sub(secondary, primary)
	buyPrimary := diff.Sign() >= 0
	diff.Abs(diff)

	mid := new(big.Float).Add(primary, secondary)
	mid.Quo(mid, big.NewFloat(2))
	if mid.Sign() == 0 {
		return 0, buyPrimary
	}

	gap := new(big.Float).Quo(diff, mid)
	gap.Mul(gap, big.NewFloat(10_000))
	out, _ := gap.Float64()
	return out, buyPrimary
}

// profitEstimate converts a relative gap into an absolute wei profit over the
// reference notional: notional * gapBps / 10_000.
func profitEstimate(notional *big.Int, gapBps float64) *big.Int {
	gap := new(big.Float).Mul(big.NewFloat(gapBps), new(big.Float).SetInt(notional))
	gap.Quo(gap, big.NewFloat(10_000))
	out, _ := gap.Int(nil)
	return out
}
