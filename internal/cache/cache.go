// Package cache stores recent successful responses keyed by request
// fingerprint. Entries are bounded two ways: insertion-order FIFO up to
// a fixed capacity, and a TTL checked lazily on read. Capacity alone
// would serve stale answers under a narrow traffic pattern; TTL alone
// would grow without bound under bursty unique traffic.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/booomerangs/ai-orchestrator/internal/domain"
	"github.com/booomerangs/ai-orchestrator/internal/metrics"
)

// Entry is one cached response. Entries are never updated in place.
type Entry struct {
	Response   string                  `json:"response"`
	Provider   string                  `json:"provider"`
	Model      string                  `json:"model"`
	Level      domain.DegradationLevel `json:"level"`
	Confidence float64                 `json:"confidence"`
	CreatedAt  time.Time               `json:"createdAt"`
}

// Cache is the response cache contract. Fingerprints are computed by
// the orchestrator; the cache stays provider-agnostic.
type Cache interface {
	Get(ctx context.Context, fingerprint string) (*Entry, bool)
	Put(ctx context.Context, fingerprint string, entry Entry) error
}

// MemoryCache is the in-process FIFO+TTL implementation. A single lock
// guards the map and the insertion-order queue so the capacity
// invariant holds under concurrent writers.
type MemoryCache struct {
	mu       sync.Mutex
	items    map[string]*Entry
	order    []string // fingerprints, oldest first
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	if capacity <= 0 {
		capacity = 100
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemoryCache{
		items:    make(map[string]*Entry),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, fingerprint string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[fingerprint]
	if !ok {
		return nil, false
	}

	if c.now().Sub(entry.CreatedAt) > c.ttl {
		c.remove(fingerprint)
		metrics.RecordCacheEviction("ttl")
		return nil, false
	}

	cp := *entry
	return &cp, true
}

func (c *MemoryCache) Put(ctx context.Context, fingerprint string, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.items[fingerprint]; ok {
		if c.now().Sub(existing.CreatedAt) <= c.ttl {
			// At most one entry per fingerprint; the first write wins.
			return nil
		}
		c.remove(fingerprint)
		metrics.RecordCacheEviction("ttl")
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = c.now()
	}

	c.items[fingerprint] = &entry
	c.order = append(c.order, fingerprint)

	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.remove(oldest)
		metrics.RecordCacheEviction("capacity")
	}

	return nil
}

// Run sweeps expired entries periodically until ctx is cancelled. The
// lazy TTL check on Get keeps reads correct without it; the sweep only
// reclaims memory for entries nobody asks for again.
func (c *MemoryCache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *MemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl)
	for fp, entry := range c.items {
		if entry.CreatedAt.Before(cutoff) {
			c.remove(fp)
			metrics.RecordCacheEviction("ttl")
		}
	}
}

// remove drops a fingerprint from the map and the order queue.
// Caller holds the lock.
func (c *MemoryCache) remove(fingerprint string) {
	delete(c.items, fingerprint)
	for i, fp := range c.order {
		if fp == fingerprint {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of live entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
