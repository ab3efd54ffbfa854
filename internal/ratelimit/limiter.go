// Package ratelimit implements a fixed-window request counter per caller key.
package ratelimit

import (
	"context"
	"time"
)

// Store counts hits per key within a fixed window. The window opens on the
// first hit for a key and closes window later. A hit arriving when limit hits
// are already counted is not recorded; its count is reported as limit+1.
type Store interface {
	Incr(ctx context.Context, key string, limit int, window time.Duration) (count int, resetAt time.Time, err error)
}

// Result describes the quota after one hit.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum 1.
func (r Result) RetryAfterSeconds() int {
	secs := int((r.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

type Limiter struct {
	store  Store
	max    int
	window time.Duration
	now    func() time.Time
}

func NewLimiter(store Store, max int, window time.Duration) *Limiter {
	return &Limiter{store: store, max: max, window: window, now: time.Now}
}

// Max returns the per-window limit
func (l *Limiter) Max() int { return l.max }

// Window returns the window length
func (l *Limiter) Window() time.Duration { return l.window }

// Allow records one hit for key. Exactly max hits per window are allowed and
// rejected hits do not count against the window.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	count, resetAt, err := l.store.Incr(ctx, key, l.max, l.window)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Allowed: count <= l.max,
		Limit:   l.max,
		ResetAt: resetAt,
	}
	if remaining := l.max - count; remaining > 0 {
		res.Remaining = remaining
	}
	if !res.Allowed {
		res.RetryAfter = resetAt.Sub(l.now())
		if res.RetryAfter < 0 {
			res.RetryAfter = 0
		}
	}
	return res, nil
}
