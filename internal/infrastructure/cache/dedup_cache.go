package cache

import (
	"context"
	"fmt"
	"time"

	pkgCache "receiptflow/pkg/cache"
)

// nxSetter is the slice of pkg/cache.Cache's Redis-backed implementations
// that can atomically claim a key, the primitive SeenWebhook needs.
type nxSetter interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
}

// DedupCache implements service.DedupCache on top of the Redis SETNX
// primitive: claiming the key succeeds only for the first delivery of a
// given webhook id within the TTL window (§4.1 step 4, §3 webhook_logs TTL).
type DedupCache struct {
	setter nxSetter
	ttl    time.Duration
}

// NewDedupCache wraps c, which must be backed by *RedisCache (the only
// pkg/cache.Cache implementation that exposes SetNX).
func NewDedupCache(c pkgCache.Cache, ttl time.Duration) (*DedupCache, error) {
	setter, ok := c.(nxSetter)
	if !ok {
		return nil, fmt.Errorf("cache implementation does not support SetNX")
	}
	return &DedupCache{setter: setter, ttl: ttl}, nil
}

func (d *DedupCache) SeenWebhook(ctx context.Context, webhookID string) (bool, error) {
	claimed, err := d.setter.SetNX(ctx, "webhook:seen:"+webhookID, 1, d.ttl)
	if err != nil {
		return false, fmt.Errorf("claim webhook dedup key: %w", err)
	}
	return !claimed, nil
}
