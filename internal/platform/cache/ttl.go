// Package cache provides the caching building blocks: an in-process TTL
// store used by the permission engine and a Redis client constructor for
// host-side stores.
package cache

import (
	"strings"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a key/value store with per-entry expiry. Expired entries are
// dropped lazily on read and physically removed by a background sweep on a
// fixed interval. A single mutex guards the map; the access pattern is
// read/write dominated, not throughput critical.
type TTL[V any] struct {
	mu         sync.Mutex
	entries    map[string]entry[V]
	defaultTTL time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// NewTTL constructs a TTL cache. A sweepInterval of zero or less disables
// the background sweep; lazy expiry on read still applies.
func NewTTL[V any](defaultTTL, sweepInterval time.Duration) *TTL[V] {
	c := &TTL[V]{
		entries:    make(map[string]entry[V]),
		defaultTTL: defaultTTL,
		stop:       make(chan struct{}),
	}
	if sweepInterval > 0 {
		go c.sweepLoop(sweepInterval)
	}
	return c
}

// Get returns the value for key. An entry past its expiry is deleted and
// reported as absent.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Has reports whether key holds a live entry, with the same expiry
// semantics as Get.
func (c *TTL[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Set stores value under key with the default TTL, overwriting silently.
func (c *TTL[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value under key with an explicit TTL.
func (c *TTL[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiresAt: time.Now().Add(ttl)}
}

// Clear drops every entry.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// ClearOwner drops entries whose key is exactly owner or begins with
// owner + "-". Engine keys are composed with the user id as the leading
// segment, so this evicts one user without touching anyone else.
func (c *TTL[V]) ClearOwner(owner string) {
	prefix := owner + "-"
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key == owner || strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of stored entries, expired or not.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stop halts the background sweep. Safe to call more than once.
func (c *TTL[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *TTL[V]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *TTL[V]) sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}
