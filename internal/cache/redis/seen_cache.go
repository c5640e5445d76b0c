package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/calderw/mevsearcher/internal/domain"
)

// SeenCache implements domain.SeenCache with SETNX and a TTL. Entries expire
// on their own; a hash resurfacing after the TTL has long since left the
// mempool.
type SeenCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ domain.SeenCache = (*SeenCache)(nil)

// NewSeenCache creates a SeenCache whose entries live for ttl.
func NewSeenCache(c *Client, ttl time.Duration) *SeenCache {
	return &SeenCache{rdb: c.Underlying(), ttl: ttl}
}

func seenKey(hash common.Hash) string {
	return "seen:" + hash.Hex()
}

// MarkSeen records the hash and reports whether this call was the first
// sighting.
func (sc *SeenCache) MarkSeen(ctx context.Context, hash common.Hash) (bool, error) {
	first, err := sc.rdb.SetNX(ctx, seenKey(hash), 1, sc.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: mark seen %s: %w", hash.Hex(), err)
	}
	return first, nil
}
