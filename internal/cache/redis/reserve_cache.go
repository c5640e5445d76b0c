package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/calderw/mevsearcher/internal/domain"
)

// ReserveCache implements domain.ReserveCache with JSON values under a short
// TTL. The TTL is the staleness bound: a burst of candidate transactions
// within it shares one on-chain read per venue.
type ReserveCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ domain.ReserveCache = (*ReserveCache)(nil)

// NewReserveCache creates a ReserveCache whose snapshots live for ttl.
func NewReserveCache(c *Client, ttl time.Duration) *ReserveCache {
	return &ReserveCache{rdb: c.Underlying(), ttl: ttl}
}

func reserveKey(venue string) string {
	return "reserves:" + venue
}

// Get returns the cached snapshot for a venue and whether one was found.
func (rc *ReserveCache) Get(ctx context.Context, venue string) (domain.Reserves, bool, error) {
	raw, err := rc.rdb.Get(ctx, reserveKey(venue)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Reserves{}, false, nil
	}
	if err != nil {
		return domain.Reserves{}, false, fmt.Errorf("redis: get reserves %s: %w", venue, err)
	}

	var r domain.Reserves
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.Reserves{}, false, fmt.Errorf("redis: decode reserves %s: %w", venue, err)
	}
	return r, true, nil
}

// Set stores a snapshot under the venue name.
func (rc *ReserveCache) Set(ctx context.Context, venue string, r domain.Reserves) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("redis: encode reserves %s: %w", venue, err)
	}
	if err := rc.rdb.Set(ctx, reserveKey(venue), raw, rc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set reserves %s: %w", venue, err)
	}
	return nil
}
