package redis

import (
	"context"
	"fmt"
	"time"

	"arena-indexer/internal/dedup"

	"github.com/redis/go-redis/v9"
)

// ProcessedCache is the shared first tier of the dedup guard.
type ProcessedCache struct {
	rdb *redis.Client
}

func NewProcessedCache(c *Client) *ProcessedCache {
	return &ProcessedCache{rdb: c.Underlying()}
}

func processedKey(signature string) string {
	return "processed:" + signature
}

func (pc *ProcessedCache) Contains(ctx context.Context, signature string) (bool, error) {
	n, err := pc.rdb.Exists(ctx, processedKey(signature)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: processed lookup %s: %w", signature, err)
	}
	return n > 0, nil
}

func (pc *ProcessedCache) Add(ctx context.Context, signature string, ttl time.Duration) error {
	if err := pc.rdb.Set(ctx, processedKey(signature), 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis: processed set %s: %w", signature, err)
	}
	return nil
}

func (pc *ProcessedCache) Remove(ctx context.Context, signature string) error {
	if err := pc.rdb.Del(ctx, processedKey(signature)).Err(); err != nil {
		return fmt.Errorf("redis: processed del %s: %w", signature, err)
	}
	return nil
}

var _ dedup.Cache = (*ProcessedCache)(nil)
