package dedup

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepThreshold is the entry count above which expired entries are
// swept on insert.
const DefaultSweepThreshold = 10000

// MemoryCache is a process-local TTL set. Expired entries read as misses and
// are evicted in bulk once the map grows past the sweep threshold.
type MemoryCache struct {
	mu        sync.Mutex
	entries   map[string]time.Time // signature -> expiry
	threshold int
	now       func() time.Time
}

func NewMemoryCache(sweepThreshold int) *MemoryCache {
	if sweepThreshold <= 0 {
		sweepThreshold = DefaultSweepThreshold
	}
	return &MemoryCache{
		entries:   make(map[string]time.Time),
		threshold: sweepThreshold,
		now:       time.Now,
	}
}

func (c *MemoryCache) Contains(_ context.Context, signature string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	expiry, ok := c.entries[signature]
	return ok && c.now().Before(expiry), nil
}

func (c *MemoryCache) Add(_ context.Context, signature string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.entries[signature] = now.Add(ttl)
	if len(c.entries) > c.threshold {
		c.sweepLocked(now)
	}
	return nil
}

func (c *MemoryCache) Remove(_ context.Context, signature string) error {
	c.mu.Lock()
	delete(c.entries, signature)
	c.mu.Unlock()
	return nil
}

// Len returns the number of entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) sweepLocked(now time.Time) {
	for sig, expiry := range c.entries {
		if !now.Before(expiry) {
			delete(c.entries, sig)
		}
	}
}
