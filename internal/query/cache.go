package query

import (
	"sync"
	"time"

	"github.com/roach88/routebook/internal/clock"
	"github.com/roach88/routebook/internal/metrics"
)

type cacheEntry struct {
	value   any
	expires time.Time
}

// ttlCache memoizes a handful of aggregates keyed by name.
type ttlCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   clock.Clock
	metrics *metrics.Metrics
	entries map[string]cacheEntry

	// gen advances on every purge so a value computed before an
	// invalidation is never stored after it.
	gen uint64
}

func (c *ttlCache) get(key string) (any, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttl <= 0 {
		return nil, c.gen, false
	}

	e, ok := c.entries[key]
	if ok && !c.clock.Now().Before(e.expires) {
		delete(c.entries, key)
		ok = false
	}
	c.metrics.CacheLookup(ok)
	if !ok {
		return nil, c.gen, false
	}
	return e.value, c.gen, true
}

func (c *ttlCache) set(key string, value any, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttl <= 0 || gen != c.gen {
		return
	}
	c.entries[key] = cacheEntry{value: value, expires: c.clock.Now().Add(c.ttl)}
}

func (c *ttlCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.gen++
}

// memo returns the cached value for key or computes and stores it.
// Errors are not cached.
func memo[T any](c *ttlCache, key string, compute func() (T, error)) (T, error) {
	cached, gen, ok := c.get(key)
	if ok {
		if typed, ok := cached.(T); ok {
			return typed, nil
		}
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	c.set(key, v, gen)
	return v, nil
}
