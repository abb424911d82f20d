package usage

import (
	"context"
	"sync"
	"time"
)

// Cache stores computed usage totals per owner.
//
// Implementations must be safe for concurrent use. A miss is reported as
// ok == false with a nil error.
//
// Every owner has a generation that Invalidate advances. Get reports the
// current generation and Set only stores a total if the generation is
// still the one the caller read, so a total computed before a change can
// never land in the cache after that change was invalidated.
type Cache interface {
	Get(ctx context.Context, ownerID string) (used int64, gen uint64, ok bool, err error)
	Set(ctx context.Context, ownerID string, used int64, gen uint64) error
	Invalidate(ctx context.Context, ownerID string) error
	Close() error
}

// noopCache never stores anything.
type noopCache struct{}

// NewNoopCache returns a Cache that always misses.
func NewNoopCache() Cache {
	return noopCache{}
}

func (noopCache) Get(context.Context, string) (int64, uint64, bool, error) { return 0, 0, false, nil }
func (noopCache) Set(context.Context, string, int64, uint64) error         { return nil }
func (noopCache) Invalidate(context.Context, string) error                 { return nil }
func (noopCache) Close() error                                             { return nil }

// MemoryCache is an in-process Cache whose entries expire after a TTL.
//
// Expired entries are dropped lazily on access; Sweep removes them in bulk.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry

	// gens holds one counter per owner that was ever invalidated.
	gens map[string]uint64

	// now returns the current time; replaced in tests.
	now func() time.Time
}

type memoryEntry struct {
	used      int64
	timestamp time.Time
}

// NewMemoryCache creates a MemoryCache. A non-positive ttl defaults to 30s.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		gens:    make(map[string]uint64),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, ownerID string) (int64, uint64, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[ownerID]
	gen := c.gens[ownerID]
	c.mu.RUnlock()

	if !ok {
		return 0, gen, false, nil
	}
	if c.now().Sub(entry.timestamp) >= c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; a Set may have refreshed it.
		if current, ok := c.entries[ownerID]; ok && current.timestamp.Equal(entry.timestamp) {
			delete(c.entries, ownerID)
		}
		c.mu.Unlock()
		return 0, gen, false, nil
	}
	return entry.used, gen, true, nil
}

// Set stores used unless ownerID was invalidated since gen was read.
func (c *MemoryCache) Set(_ context.Context, ownerID string, used int64, gen uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[ownerID] != gen {
		return nil
	}
	c.entries[ownerID] = memoryEntry{used: used, timestamp: c.now()}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, ownerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, ownerID)
	c.gens[ownerID]++
	return nil
}

// Sweep removes expired entries and returns how many were dropped.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	dropped := 0
	for owner, entry := range c.entries {
		if now.Sub(entry.timestamp) >= c.ttl {
			delete(c.entries, owner)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
	c.gens = make(map[string]uint64)
	return nil
}

var _ Cache = (*MemoryCache)(nil)
