// Package dedup remembers which ledger transactions have already been
// committed so redelivered webhooks can be acknowledged without work.
package dedup

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTTL is how long a processed marker stays in the fast cache.
const DefaultTTL = time.Hour

// Cache is the fast, possibly shared, first tier. It is a hint only.
type Cache interface {
	Contains(ctx context.Context, signature string) (bool, error)
	Add(ctx context.Context, signature string, ttl time.Duration) error
	Remove(ctx context.Context, signature string) error
}

// Store is the durable second tier and the source of truth.
type Store interface {
	ProcessedExists(ctx context.Context, signature string) (bool, error)
	InsertProcessed(ctx context.Context, signature string, at time.Time) error
	DeleteProcessed(ctx context.Context, signature string) (bool, error)
}

// Guard checks the cache, then the store. Cache failures degrade to a store
// lookup; store failures are returned.
type Guard struct {
	cache Cache
	store Store
	ttl   time.Duration
	log   *logrus.Logger
	now   func() time.Time
}

func NewGuard(cache Cache, store Store, ttl time.Duration, log *logrus.Logger) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{cache: cache, store: store, ttl: ttl, log: log, now: time.Now}
}

// IsProcessed reports whether signature has been committed. A store hit
// repopulates the cache.
func (g *Guard) IsProcessed(ctx context.Context, signature string) (bool, error) {
	hit, err := g.cache.Contains(ctx, signature)
	if err != nil {
		g.log.WithError(err).WithField("signature", signature).Warn("Dedup cache lookup failed, falling back to store")
	} else if hit {
		return true, nil
	}

	exists, err := g.store.ProcessedExists(ctx, signature)
	if err != nil {
		return false, err
	}
	if exists {
		g.remember(ctx, signature)
	}
	return exists, nil
}

// MarkProcessed records signature as committed. Call it only after every
// mutation for the transaction has committed.
func (g *Guard) MarkProcessed(ctx context.Context, signature string) error {
	if err := g.store.InsertProcessed(ctx, signature, g.now().UTC()); err != nil {
		return err
	}
	g.remember(ctx, signature)
	return nil
}

// Clear forgets signature in both tiers so the next delivery is reprocessed.
// It reports whether the store held a marker.
func (g *Guard) Clear(ctx context.Context, signature string) (bool, error) {
	if err := g.cache.Remove(ctx, signature); err != nil {
		g.log.WithError(err).WithField("signature", signature).Warn("Dedup cache removal failed")
	}
	return g.store.DeleteProcessed(ctx, signature)
}

func (g *Guard) remember(ctx context.Context, signature string) {
	if err := g.cache.Add(ctx, signature, g.ttl); err != nil {
		g.log.WithError(err).WithField("signature", signature).Warn("Dedup cache write failed")
	}
}
