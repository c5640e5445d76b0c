package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Opportunity is the scoring verdict for a single pending transaction. It is
// produced by the scorer, consumed immediately by the monitor, and never
// shared across goroutines.
type Opportunity struct {
	// ID is a UUID assigned at detection time, used as the primary key when
	// the opportunity is recorded.
	ID string

	// TxHash is the hash of the pending transaction that triggered detection.
	TxHash common.Hash

	// Profitable reports whether the price gap cleared both the relative gap
	// threshold and the absolute profit floor.
	Profitable bool

	// EstimatedProfit is the estimated gross profit in wei. Zero when
	// Profitable is false.
	EstimatedProfit *big.Int

	// Confidence is the likelihood in [0,1] that the opportunity is genuine.
	// Zero when scoring failed or the opportunity is not profitable.
	Confidence float64

	// BuyVenue and SellVenue name the cheaper and dearer liquidity venues.
	BuyVenue  string
	SellVenue string

	// GapBps is the relative price gap between the two venues in basis points.
	GapBps float64

	DetectedAt time.Time
}

// Submission records one bundle submission attempt against the relay.
type Submission struct {
	ID            string
	OpportunityID string

	// BundleHash is the relay-assigned bundle identifier. Empty when the
	// bundle was rejected at simulation.
	BundleHash string

	TargetBlock uint64
	Nonce       uint64

	Status SubmissionStatus

	// SimError carries the simulation failure message for rejected bundles.
	SimError string

	SubmittedAt time.Time
}

// SubmissionStatus is the terminal state of a submission attempt.
type SubmissionStatus string

const (
	// SubmissionSubmitted means the bundle passed simulation and was handed
	// to the relay for the target block.
	SubmissionSubmitted SubmissionStatus = "submitted"

	// SubmissionRejected means simulation reported an error and the bundle
	// was never sent.
	SubmissionRejected SubmissionStatus = "rejected"
)
