package redis

import (
	"context"
	"fmt"
	"time"

	"arena-indexer/internal/ratelimit"

	"github.com/redis/go-redis/v9"
)

// fixedWindowLua increments the counter while it is below the limit and
// opens the window on the first hit. A full window is left untouched and
// reported as limit+1. Returns {count, pttl}.
const fixedWindowLua = `
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= tonumber(ARGV[2]) then
  local ttl = redis.call("PTTL", KEYS[1])
  if ttl < 0 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
    ttl = tonumber(ARGV[1])
  end
  return {current + 1, ttl}
end
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

// RateLimitStore shares fixed-window counters between indexer instances.
type RateLimitStore struct {
	rdb    *redis.Client
	script *redis.Script
}

func NewRateLimitStore(c *Client) *RateLimitStore {
	return &RateLimitStore{rdb: c.Underlying(), script: redis.NewScript(fixedWindowLua)}
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}

func (s *RateLimitStore) Incr(ctx context.Context, key string, limit int, window time.Duration) (int, time.Time, error) {
	res, err := s.script.Run(ctx, s.rdb, []string{rateLimitKey(key)}, window.Milliseconds(), limit).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: rate limit incr %s: %w", key, err)
	}
	if len(res) < 2 {
		return 0, time.Time{}, fmt.Errorf("redis: rate limit incr %s: unexpected result length %d", key, len(res))
	}
	return int(res[0]), time.Now().Add(time.Duration(res[1]) * time.Millisecond), nil
}

var _ ratelimit.Store = (*RateLimitStore)(nil)
