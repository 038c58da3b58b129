// Package cache provides the embedding/result cache: a bounded, TTL-expiring
// LRU held in process, optionally backed by a shared Redis tier.
//
// Eviction is deterministic: a Get refreshes recency, and admitting a new key
// at capacity evicts the least recently used entry. Expired entries are
// dropped lazily when read or when they reach the tail. The cache is never a
// source of truth; callers recompute on a miss (see GetOrCompute).
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/tunegraph/internal/observability"
	"github.com/yungbote/tunegraph/internal/platform/logger"
)

type Stats struct {
	Size      int   `json:"size"`
	MaxSize   int   `json:"max_size"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Expired   int64 `json:"expired"`
}

// Backing is a slower shared tier consulted after a local miss.
type Backing[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, v V, ttl time.Duration) error
	Ping(ctx context.Context) error
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

type Cache[V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	ll      *list.List
	items   map[string]*list.Element
	now     func() time.Time
	tier    string
	backing Backing[V]
	log     *logger.Logger

	hits, misses, evictions, expired int64
}

type Option[V any] func(*Cache[V])

// WithClock replaces time.Now; used by tests.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		if now != nil {
			c.now = now
		}
	}
}

func WithBacking[V any](b Backing[V]) Option[V] {
	return func(c *Cache[V]) { c.backing = b }
}

// WithLogger reports backing tier failures. Without it they are only counted.
func WithLogger[V any](log *logger.Logger) Option[V] {
	return func(c *Cache[V]) { c.log = log }
}

// WithTier names the cache in metrics.
func WithTier[V any](name string) Option[V] {
	return func(c *Cache[V]) {
		if name != "" {
			c.tier = name
		}
	}
}

func New[V any](maxSize int, ttl time.Duration, opts ...Option[V]) *Cache[V] {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &Cache[V]{
		maxSize: maxSize,
		ttl:     ttl,
		ll:      list.New(),
		items:   make(map[string]*list.Element, maxSize),
		now:     time.Now,
		tier:    "local",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key, or a miss if it is absent or older than the TTL.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.misses++
		observability.CacheRequests.WithLabelValues(c.tier, "miss").Inc()
		return zero, false
	}
	e := el.Value.(*entry[V])
	if !c.now().Before(e.expiresAt) {
		c.removeElement(el)
		c.expired++
		c.misses++
		observability.CacheEvictions.WithLabelValues(c.tier, "expired").Inc()
		observability.CacheRequests.WithLabelValues(c.tier, "expired").Inc()
		return zero, false
	}
	c.ll.MoveToFront(el)
	c.hits++
	observability.CacheRequests.WithLabelValues(c.tier, "hit").Inc()
	return e.value, true
}

func (c *Cache[V]) Set(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = v
		e.expiresAt = expiresAt
		c.ll.MoveToFront(el)
		return
	}
	for c.ll.Len() >= c.maxSize {
		c.evictOldest()
	}
	c.items[key] = c.ll.PushFront(&entry[V]{key: key, value: v, expiresAt: expiresAt})
	observability.CacheEntries.WithLabelValues(c.tier).Set(float64(c.ll.Len()))
}

func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:      c.ll.Len(),
		MaxSize:   c.maxSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Expired:   c.expired,
	}
}

// GetOrCompute returns the cached value for key, falling back to the backing
// tier and then to compute. Computed values are stored in both tiers. Backing
// tier failures degrade to recomputation. fromCache reports whether compute
// was skipped.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (V, error)) (v V, fromCache bool, err error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}
	if c.backing != nil {
		bv, ok, berr := c.backing.Get(ctx, key)
		if berr != nil {
			c.backingFailed("get", key, berr)
		} else if ok {
			c.Set(key, bv)
			return bv, true, nil
		}
	}
	v, err = compute(ctx)
	if err != nil {
		var zero V
		return zero, false, err
	}
	c.Set(key, v)
	if c.backing != nil {
		if serr := c.backing.Set(ctx, key, v, c.ttl); serr != nil {
			c.backingFailed("set", key, serr)
		}
	}
	return v, false, nil
}

func (c *Cache[V]) backingFailed(op, key string, err error) {
	if c.log != nil {
		c.log.Warn("Backing cache unavailable; recomputing", "tier", c.tier, "op", op, "key", key, "error", err)
	}
}

// Check is the health probe: the local bound must hold and the backing tier,
// if any, must answer a ping.
func (c *Cache[V]) Check(ctx context.Context) error {
	if st := c.Stats(); st.Size > st.MaxSize {
		return fmt.Errorf("cache %s: size %d exceeds bound %d", c.tier, st.Size, st.MaxSize)
	}
	if c.backing != nil {
		return c.backing.Ping(ctx)
	}
	return nil
}

func (c *Cache[V]) evictOldest() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	e := el.Value.(*entry[V])
	reason := "capacity"
	if !c.now().Before(e.expiresAt) {
		reason = "expired"
		c.expired++
	} else {
		c.evictions++
	}
	c.removeElement(el)
	observability.CacheEvictions.WithLabelValues(c.tier, reason).Inc()
}

func (c *Cache[V]) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry[V]).key)
	observability.CacheEntries.WithLabelValues(c.tier).Set(float64(c.ll.Len()))
}
