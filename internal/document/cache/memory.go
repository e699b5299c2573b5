// Package cache stores classification outcomes keyed by image digest so a
// repeated image is classified once.
package cache

import (
	"context"
	"sync"
	"time"

	"ekyc/internal/document/ports"
)

type cachedClassification struct {
	value    ports.Classification
	storedAt time.Time
}

// InMemoryCache provides an in-memory classification cache with TTL expiration.
type InMemoryCache struct {
	mu       sync.RWMutex
	entries  map[string]cachedClassification
	cacheTTL time.Duration
	now      func() time.Time
	metrics  *Metrics
}

// MemoryOption configures an InMemoryCache.
type MemoryOption func(*InMemoryCache)

// WithMemoryMetrics records hits and misses.
func WithMemoryMetrics(m *Metrics) MemoryOption {
	return func(c *InMemoryCache) {
		c.metrics = m
	}
}

// NewInMemoryCache creates a new in-memory cache with the specified TTL.
func NewInMemoryCache(cacheTTL time.Duration, opts ...MemoryOption) *InMemoryCache {
	c := &InMemoryCache{
		entries:  make(map[string]cachedClassification),
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Save stores c under key.
func (c *InMemoryCache) Save(_ context.Context, key string, value ports.Classification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedClassification{value: value, storedAt: c.now()}
	return nil
}

// Find returns the cached classification for key. Expired entries are
// reported as misses and evicted.
func (c *InMemoryCache) Find(_ context.Context, key string) (ports.Classification, bool, error) {
	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().Sub(cached.storedAt) < c.cacheTTL {
		c.metrics.hit(backendMemory)
		return cached.value, true, nil
	}
	if ok {
		c.mu.Lock()
		if current, still := c.entries[key]; still && current.storedAt.Equal(cached.storedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}
	c.metrics.miss(backendMemory)
	return ports.Classification{}, false, nil
}

// Len reports how many entries are held, expired ones included.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
