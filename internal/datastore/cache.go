package datastore

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/brixfix/brixfix-go/internal/observability/metrics"
)

const globalAggregateKey = "global"

// aggregateCache memoizes label aggregates. Every write bumps the
// generation so that loads started before the write are not cached.
type aggregateCache struct {
	store      *cache.Cache // nil disables caching
	group      singleflight.Group
	mu         sync.Mutex // orders generation checks against invalidate
	generation atomic.Uint64
	metrics    *Metrics
}

func newAggregateCache(ttl time.Duration, m *Metrics) *aggregateCache {
	c := &aggregateCache{metrics: m}
	if ttl > 0 {
		c.store = cache.New(ttl, 2*ttl)
	}
	return c
}

func aggregateKey(email *string) string {
	if email == nil {
		return globalAggregateKey
	}
	return "user:" + *email
}

// get returns cached stats for key or loads them once for all concurrent
// callers. Returned slices are copies.
func (c *aggregateCache) get(ctx context.Context, key string, load func(context.Context) ([]LabelStats, error)) ([]LabelStats, error) {
	if c.store != nil {
		if v, ok := c.store.Get(key); ok {
			c.metrics.RecordCache(metrics.CacheHit)
			return cloneStats(v.([]LabelStats)), nil
		}
	}
	c.metrics.RecordCache(metrics.CacheMiss)

	gen := c.generation.Load()
	// callers arriving after a write never join a load that started before it
	flightKey := key + "#" + strconv.FormatUint(gen, 10)
	v, err, _ := c.group.Do(flightKey, func() (any, error) {
		// detach from the first caller so its cancellation does not fail the others
		stats, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.storeIfCurrent(key, gen, stats)
		return stats, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneStats(v.([]LabelStats)), nil
}

// storeIfCurrent caches stats unless a write happened since gen was read.
func (c *aggregateCache) storeIfCurrent(key string, gen uint64, stats []LabelStats) {
	if c.store == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation.Load() == gen {
		c.store.SetDefault(key, stats)
	}
}

// invalidate drops every cached aggregate.
func (c *aggregateCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation.Add(1)
	c.flush()
}

func (c *aggregateCache) flush() {
	if c.store != nil {
		c.store.Flush()
	}
}

func cloneStats(in []LabelStats) []LabelStats {
	out := make([]LabelStats, len(in))
	copy(out, in)
	return out
}
