package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"pbx-console/internal/livecalls"

	"github.com/redis/go-redis/v9"
)

// SnapshotCache caches one active-calls result for a short TTL.
//
// The cache is keyed globally, not per tenant: the provider endpoint returns
// every tenant's legs and scoping happens downstream in livecalls.Reconcile.
// Any number of concurrent consumers may share one cached result within the
// TTL window.
type SnapshotCache interface {
	Get(ctx context.Context) ([]livecalls.Leg, bool, error)
	Set(ctx context.Context, legs []livecalls.Leg) error
	Invalidate(ctx context.Context) error
}

// MemoryCache is a single-process SnapshotCache: one value, one timestamp,
// one TTL. Safe for concurrent use.
type MemoryCache struct {
	ttl time.Duration

	mu    sync.Mutex
	legs  []livecalls.Leg
	setAt time.Time
	valid bool

	// now is injectable for deterministic tests.
	now func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &MemoryCache{ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context) ([]livecalls.Leg, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || c.now().Sub(c.setAt) >= c.ttl {
		return nil, false, nil
	}
	out := make([]livecalls.Leg, len(c.legs))
	copy(out, c.legs)
	return out, true, nil
}

func (c *MemoryCache) Set(_ context.Context, legs []livecalls.Leg) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.legs = make([]livecalls.Leg, len(legs))
	copy(c.legs, legs)
	c.setAt = c.now()
	c.valid = true
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
	c.legs = nil
	return nil
}

// RedisCache shares one snapshot across API replicas. Expiry is delegated to
// Redis via PX, so all replicas observe the same TTL window.
type RedisCache struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

const defaultRedisKey = "pbx:active_calls:snapshot"

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &RedisCache{rdb: rdb, key: defaultRedisKey, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context) ([]livecalls.Leg, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var legs []livecalls.Leg
	if err := json.Unmarshal(raw, &legs); err != nil {
		// A corrupt entry behaves like a miss; next Set overwrites it.
		return nil, false, nil
	}
	return legs, true, nil
}

func (c *RedisCache) Set(ctx context.Context, legs []livecalls.Leg) error {
	raw, err := json.Marshal(legs)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key, raw, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, c.key).Err()
}
