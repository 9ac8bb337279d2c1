// Package evalcache is the content-addressed cache for criterion scores.
// Keys are strong hashes over (text, criterion, version, rules), so a
// key always maps to the same score for deterministic criteria and
// entries never expire. Invalidation exists only as an operator escape
// hatch after a criterion bug-fix; bumping the criterion version changes
// the key anyway.
package evalcache

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/sagelearn/sagacity/internal/telemetry"
)

// Store is the key-value backend the cache writes through to. Writes
// must be idempotent: the same key always carries the same value, so
// last-writer-wins races resolve safely. A Store error must surface,
// never degrade into a stale or empty answer — the cache fails closed.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Cache deduplicates expensive score computations per key. Concurrent
// callers for the same key share a single in-process computation via
// singleflight; distinct processes may compute redundantly, which is
// acceptable because values are deterministic.
type Cache struct {
	store Store
	group singleflight.Group

	hits   metric.Int64Counter
	misses metric.Int64Counter
}

// New creates a cache over the given store.
func New(store Store) *Cache {
	c := &Cache{store: store}
	meter := telemetry.Meter("sagacity/evalcache")
	c.hits, _ = meter.Int64Counter("sagacity.evalcache.hits_total",
		metric.WithDescription("Cache lookups served from the store"))
	c.misses, _ = meter.Int64Counter("sagacity.evalcache.misses_total",
		metric.WithDescription("Cache lookups that required computation"))
	return c
}

// GetOrCompute returns the cached value for key, computing and storing
// it on a miss. Compute errors propagate to the caller and are not
// cached. Note that singleflight reuses the first caller's context for
// the shared computation — a second caller may receive a result (or
// cancellation) driven by the first caller's deadline.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		cached, ok, err := c.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			c.hits.Add(ctx, 1)
			return cached, nil
		}
		c.misses.Add(ctx, 1)

		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.store.Put(ctx, key, value); err != nil {
			return nil, err
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Invalidate removes the entry for key, forcing recomputation on the
// next lookup.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}
