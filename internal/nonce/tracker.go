// Package nonce tracks the executing account's transaction nonce across
// concurrent bundle submissions.
package nonce

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ChainNonceReader reads the account's pending nonce from the node.
type ChainNonceReader interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// Tracker owns the local nonce for a single account. The nonce only ever
// moves forward: Commit advances it by one after a successful submission, and
// Resync raises it to the chain's view but never lowers it. Callers must hold
// their own submission lock so only one bundle is in flight at a time.
type Tracker struct {
	mu      sync.Mutex
	account common.Address
	next    uint64
	reader  ChainNonceReader
	logger  *slog.Logger
}

// NewTracker initialises the tracker from the chain's pending nonce. Failure
// here is fatal to startup; running with an unknown nonce guarantees invalid
// bundles.
func NewTracker(ctx context.Context, reader ChainNonceReader, account common.Address, logger *slog.Logger) (*Tracker, error) {
	n, err := reader.PendingNonceAt(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("initial nonce fetch for %s: %w", account.Hex(), err)
	}
	return &Tracker{
		account: account,
		next:    n,
		reader:  reader,
		logger:  logger.With(slog.String("component", "nonce_tracker")),
	}, nil
}

// Reserve returns the nonce the next bundle should use without consuming it.
func (t *Tracker) Reserve() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next
}

// Commit advances the nonce after a bundle built with Reserve's value was
// accepted by the relay. It must be called exactly once per accepted bundle.
func (t *Tracker) Commit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
}

// Resync reconciles the local nonce with the chain's pending view. The local
// value is only ever raised; a node answering from a stale fork must not
// cause nonce reuse. Returns the nonce in effect after reconciliation.
func (t *Tracker) Resync(ctx context.Context) (uint64, error) {
	chainNonce, err := t.reader.PendingNonceAt(ctx, t.account)
	if err != nil {
		return 0, fmt.Errorf("nonce resync for %s: %w", t.account.Hex(), err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if chainNonce > t.next {
		t.logger.Info("nonce raised from chain",
			slog.Uint64("local", t.next),
			slog.Uint64("chain", chainNonce),
		)
		t.next = chainNonce
	}
	return t.next, nil
}
