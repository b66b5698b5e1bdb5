// Package cache holds compiled previews keyed by content hash.
package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache stores values of one type with a per-entry time to live
type Cache[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V, ttl time.Duration)
	// GetOrSet returns the cached value or stores the result of compute.
	// Concurrent callers for the same key share one compute call. Errors
	// from compute are returned and nothing is cached.
	GetOrSet(key string, ttl time.Duration, compute func() (V, error)) (V, error)
	Delete(key string)
	Clear()
	Len() int
	Stats() Stats
	Stop()
}

// Stats counts lookups since the cache was created
type Stats struct {
	Hits   uint64
	Misses uint64
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a thread-safe in-memory Cache
type TTLCache[V any] struct {
	mu       sync.RWMutex
	items    map[string]entry[V]
	stats    Stats
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
	flights  singleflight.Group
}

// Option configures a TTLCache
type Option func(*options)

type options struct {
	cleanupInterval time.Duration
	now             func() time.Time
}

// WithCleanupInterval starts a sweeper removing expired entries at the interval
func WithCleanupInterval(interval time.Duration) Option {
	return func(o *options) {
		o.cleanupInterval = interval
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// NewTTLCache creates an empty cache. Without WithCleanupInterval expired
// entries are only dropped when read.
func NewTTLCache[V any](opts ...Option) *TTLCache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	c := &TTLCache[V]{
		items: make(map[string]entry[V]),
		now:   o.now,
		stop:  make(chan struct{}),
	}
	if o.cleanupInterval > 0 {
		go c.sweep(o.cleanupInterval)
	}
	return c
}

func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(key)
}

func (c *TTLCache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
}

func (c *TTLCache[V]) GetOrSet(key string, ttl time.Duration, compute func() (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	v, err, _ := c.flights.Do(key, func() (interface{}, error) {
		// a flight that finished between Get and Do already stored the value
		c.mu.RLock()
		e, ok := c.items[key]
		c.mu.RUnlock()
		if ok && c.now().Before(e.expiresAt) {
			return e.value, nil
		}

		value, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(key, value, ttl)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	value, _ := v.(V)
	return value, nil
}

func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry[V])
}

// Len counts live entries
func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	n := 0
	for _, e := range c.items {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

func (c *TTLCache[V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Stop ends the sweeper. Safe to call more than once.
func (c *TTLCache[V]) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// lookup must be called with the write lock held
func (c *TTLCache[V]) lookup(key string) (V, bool) {
	e, ok := c.items[key]
	if ok && !c.now().Before(e.expiresAt) {
		delete(c.items, key)
		ok = false
	}
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.stats.Hits++
	return e.value, true
}

func (c *TTLCache[V]) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *TTLCache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, key)
		}
	}
}
