// Package cache implements the in-process TTL cache used to short-circuit
// repeated aggregation queries. Entries are volatile: nothing survives a
// restart, and expiry is passive (checked on read, no background sweep).
package cache

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

type entry struct {
	value       any
	fingerprint uint64
	expiresAt   time.Time
}

// Cache is a TTL-keyed store safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Entry is the public view of a stored value. Fingerprint is an xxhash of
// the JSON encoding of the value, usable as an ETag for revalidation.
type Entry struct {
	Value       any
	Fingerprint uint64
}

// Stats reports cache usage counters.
type Stats struct {
	Keys   int
	Hits   uint64
	Misses uint64
}

// New creates a cache whose Set entries expire after defaultTTL.
func New(defaultTTL time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
	}
}

// Get returns the value stored under key, or absent if it was never set or
// its TTL has elapsed.
func (c *Cache) Get(key string) (any, bool) {
	e, ok := c.GetEntry(key)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// GetEntry is Get with the payload fingerprint included.
func (c *Cache) GetEntry(key string) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		c.misses.Add(1)
		return Entry{}, false
	}
	c.hits.Add(1)
	return Entry{Value: e.value, Fingerprint: e.fingerprint}, true
}

// Set stores value under key with the default TTL, replacing any previous
// entry and resetting its expiry. It returns the payload fingerprint.
func (c *Cache) Set(key string, value any) uint64 {
	return c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL is Set with an explicit TTL.
func (c *Cache) SetTTL(key string, value any, ttl time.Duration) uint64 {
	var fp uint64
	if data, err := json.Marshal(value); err == nil {
		fp = xxhash.Sum64(data)
	}

	c.mu.Lock()
	c.entries[key] = entry{
		value:       value,
		fingerprint: fp,
		expiresAt:   time.Now().Add(ttl),
	}
	c.mu.Unlock()
	return fp
}

// Stats returns current counters. Expired entries are pruned first so the
// key count only reflects live entries.
func (c *Cache) Stats() Stats {
	now := time.Now()

	c.mu.Lock()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
	keys := len(c.entries)
	c.mu.Unlock()

	return Stats{
		Keys:   keys,
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// FlushAll removes every entry and resets the hit/miss counters so that
// stats after a flush describe only post-flush traffic.
func (c *Cache) FlushAll() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()

	c.hits.Store(0)
	c.misses.Store(0)
}

// TTL returns the default TTL entries are written with.
func (c *Cache) TTL() time.Duration {
	return c.defaultTTL
}
