package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Reserves is a point-in-time snapshot of a venue's pool reserves, oriented
// so Base is the traded asset and Quote the pricing asset.
type Reserves struct {
	Base      *big.Int  `json:"base"`
	Quote     *big.Int  `json:"quote"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReserveCache is a short-TTL cache of venue reserve snapshots. It absorbs
// mempool bursts so a flurry of candidate transactions does not turn into a
// flurry of identical on-chain reads.
type ReserveCache interface {
	// Get returns the cached snapshot for a venue and whether one was found.
	Get(ctx context.Context, venue string) (Reserves, bool, error)

	// Set stores a snapshot under the venue name.
	Set(ctx context.Context, venue string, r Reserves) error
}

// SeenCache deduplicates pending-transaction hashes across reconnects and
// across replicas. Each hash is evaluated at most once.
type SeenCache interface {
	// MarkSeen records the hash and reports whether this call was the first
	// sighting.
	MarkSeen(ctx context.Context, hash common.Hash) (first bool, err error)
}

// LockManager provides distributed mutual exclusion. The submission path
// acquires a per-account lock so two replicas sharing one signing key never
// race the account nonce.
type LockManager interface {
	// Acquire obtains the lock for key with the given TTL and returns an
	// unlock function, or ErrLockHeld when another party holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
