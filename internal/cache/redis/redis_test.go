package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// newTestClient connects to REDIS_TEST_URL or skips.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	c, err := New(context.Background(), url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRateLimitStoreFixedWindow(t *testing.T) {
	c := newTestClient(t)
	store := NewRateLimitStore(c)
	ctx := context.Background()
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { c.Underlying().Del(ctx, rateLimitKey(key)) })

	var resetAt time.Time
	for i := 1; i <= 3; i++ {
		count, reset, err := store.Incr(ctx, key, 10, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if count != i {
			t.Fatalf("count = %d, want %d", count, i)
		}
		resetAt = reset
	}
	if until := time.Until(resetAt); until <= 0 || until > time.Minute {
		t.Errorf("reset should fall inside the window, got %v", until)
	}

	// A full window reports limit+1 and leaves the stored counter alone.
	for i := 0; i < 2; i++ {
		count, _, err := store.Incr(ctx, key, 3, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if count != 4 {
			t.Fatalf("rejected hit count = %d, want 4", count)
		}
	}
	stored, err := c.Underlying().Get(ctx, rateLimitKey(key)).Int()
	if err != nil {
		t.Fatal(err)
	}
	if stored != 3 {
		t.Fatalf("stored counter = %d, want 3", stored)
	}
}

func TestProcessedCache(t *testing.T) {
	c := newTestClient(t)
	cache := NewProcessedCache(c)
	ctx := context.Background()
	sig := "test-" + uuid.NewString()

	if hit, err := cache.Contains(ctx, sig); err != nil || hit {
		t.Fatalf("fresh key: hit=%v err=%v", hit, err)
	}
	if err := cache.Add(ctx, sig, time.Minute); err != nil {
		t.Fatal(err)
	}
	if hit, _ := cache.Contains(ctx, sig); !hit {
		t.Fatal("expected a hit after Add")
	}
	if err := cache.Remove(ctx, sig); err != nil {
		t.Fatal(err)
	}
	if hit, _ := cache.Contains(ctx, sig); hit {
		t.Fatal("expected a miss after Remove")
	}
}
