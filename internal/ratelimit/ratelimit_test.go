package ratelimit

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(max int, window time.Duration) (*Limiter, *MemoryStore, *clock) {
	clk := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.now = clk.now
	l := NewLimiter(store, max, window)
	l.now = clk.now
	return l, store, clk
}

func TestFixedWindowBoundary(t *testing.T) {
	l, _, clk := newTestLimiter(10, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		res, err := l.Allow(ctx, "1.2.3.4")
		if err != nil {
			t.Fatal(err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if res.Remaining != 10-i {
			t.Errorf("request %d: remaining = %d, want %d", i, res.Remaining, 10-i)
		}
	}

	clk.t = clk.t.Add(20 * time.Second)
	res, _ := l.Allow(ctx, "1.2.3.4")
	if res.Allowed {
		t.Fatal("request 11 should be rejected")
	}
	if res.RetryAfterSeconds() != 40 {
		t.Errorf("retry after = %d, want 40", res.RetryAfterSeconds())
	}

	other, _ := l.Allow(ctx, "5.6.7.8")
	if !other.Allowed {
		t.Error("a different key has its own window")
	}

	clk.t = clk.t.Add(40 * time.Second)
	res, _ = l.Allow(ctx, "1.2.3.4")
	if !res.Allowed || res.Remaining != 9 {
		t.Fatalf("window should have reset, got %+v", res)
	}
}

func TestRejectedHitsAreNotCounted(t *testing.T) {
	l, store, _ := newTestLimiter(2, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		res, err := l.Allow(ctx, "caller")
		if err != nil {
			t.Fatal(err)
		}
		if want := i <= 2; res.Allowed != want {
			t.Fatalf("request %d: allowed = %v, want %v", i, res.Allowed, want)
		}
		if res.Remaining != 0 && i > 2 {
			t.Errorf("request %d: remaining = %d after the window filled", i, res.Remaining)
		}
	}
	if got := store.windows["caller"].count; got != 2 {
		t.Fatalf("stored count = %d, want 2: rejected hits must not be recorded", got)
	}
}

func TestMemoryStorePurgesExpiredWindows(t *testing.T) {
	l, store, clk := newTestLimiter(5, time.Minute)
	ctx := context.Background()

	_, _ = l.Allow(ctx, "a")
	_, _ = l.Allow(ctx, "b")
	clk.t = clk.t.Add(2 * time.Minute)
	_, _ = l.Allow(ctx, "c")

	if store.Len() != 1 {
		t.Fatalf("expected expired windows to be purged, %d remain", store.Len())
	}
}

func newRouter(l *Limiter, limited *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	r := gin.New()
	r.Use(Middleware(l, "webhook", func(*gin.Context) string { return "caller" }, log, func(string) { *limited++ }))
	r.POST("/hook", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"success": true}) })
	return r
}

func TestMiddlewareHeadersAnd429(t *testing.T) {
	l, _, _ := newTestLimiter(2, time.Minute)
	var limited int
	r := newRouter(l, &limited)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/hook", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, w.Code)
		}
		if w.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("missing limit header")
		}
		if w.Header().Get("X-RateLimit-Reset") == "" {
			t.Errorf("missing reset header")
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/hook", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", w.Header().Get("Retry-After"))
	}
	if limited != 1 {
		t.Errorf("onLimited called %d times", limited)
	}
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, int, time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("redis: connection refused")
}

func TestMiddlewareFailsOpen(t *testing.T) {
	var limited int
	r := newRouter(NewLimiter(failingStore{}, 1, time.Minute), &limited)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/hook", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("store failure should not block requests, got %d", w.Code)
		}
	}
}
