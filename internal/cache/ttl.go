// Package cache holds the in-process read caches and the tag-based
// revalidation that keeps them honest after writes.
package cache

import (
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"

	"github.com/helporbit/helporbit/internal/telemetry"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTLCache is a size-bounded LRU whose entries also expire after a fixed
// TTL measured on an injected clock. It is safe for concurrent use.
type TTLCache[K ~string, V any] struct {
	name  string
	ttl   time.Duration
	clock clockwork.Clock
	lru   *lru.Cache[K, entry[V]]
}

// NewTTLCache creates a cache holding at most size entries. name labels the
// cache in metrics.
func NewTTLCache[K ~string, V any](name string, size int, ttl time.Duration, clock clockwork.Clock) (*TTLCache[K, V], error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("cache %s: ttl must be positive", name)
	}
	l, err := lru.New[K, entry[V]](size)
	if err != nil {
		return nil, fmt.Errorf("cache %s: %w", name, err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TTLCache[K, V]{name: name, ttl: ttl, clock: clock, lru: l}, nil
}

// Get returns the live value for key. Expired entries are dropped.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	e, ok := c.lru.Get(key)
	if ok && c.clock.Now().Before(e.expires) {
		telemetry.CacheRequestsTotal.WithLabelValues(c.name, "hit").Inc()
		return e.value, true
	}
	if ok {
		c.lru.Remove(key)
	}
	telemetry.CacheRequestsTotal.WithLabelValues(c.name, "miss").Inc()
	var zero V
	return zero, false
}

// Set stores value under key for one TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.lru.Add(key, entry[V]{value: value, expires: c.clock.Now().Add(c.ttl)})
}

// Invalidate drops key.
func (c *TTLCache[K, V]) Invalidate(key K) {
	c.lru.Remove(key)
}

// InvalidatePrefix drops every key starting with prefix and returns how
// many were removed. An empty prefix clears the cache.
func (c *TTLCache[K, V]) InvalidatePrefix(prefix string) int {
	if prefix == "" {
		n := c.lru.Len()
		c.lru.Purge()
		return n
	}
	removed := 0
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(string(key), prefix) && c.lru.Remove(key) {
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, expired or not.
func (c *TTLCache[K, V]) Len() int {
	return c.lru.Len()
}
