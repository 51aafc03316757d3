// Package ratelimit is a sliding-window limiter keyed by caller.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type RateLimiter struct {
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

func New(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Limit() int {
	return rl.limit
}

// valid drops timestamps outside the window. Caller holds mu.
func (rl *RateLimiter) valid(key string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	kept := rl.requests[key][:0]
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(rl.requests, key)
		return nil
	}
	rl.requests[key] = kept
	return kept
}

// Allow records a request for key and reports whether it fits in the window.
// It also returns what is left and when the oldest request ages out.
func (rl *RateLimiter) Allow(key string) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	valid := rl.valid(key, now)

	reset := now.Add(rl.window)
	if len(valid) > 0 {
		reset = valid[0].Add(rl.window)
	}
	if len(valid) >= rl.limit {
		return false, 0, reset
	}

	rl.requests[key] = append(valid, now)
	return true, rl.limit - len(valid) - 1, reset
}

// Remaining returns how many requests key may still make in this window
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	remaining := rl.limit - len(rl.valid(key, rl.now()))
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.requests, key)
}

// Cleanup removes keys with no requests left in the window
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key := range rl.requests {
		rl.valid(key, now)
	}
}

// StartCleanup runs Cleanup every interval until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}()
}
