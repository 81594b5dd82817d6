package server

import (
	"sync"
	"time"
)

// RateLimiter implements a sliding-window rate limit per client.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters map[string][]time.Time
	now      func() time.Time
}

// NewRateLimiter creates a rate limiter. If limit <= 0, Allow always returns true.
func NewRateLimiter(limit int, windowSeconds int) *RateLimiter {
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	return &RateLimiter{
		limit:    limit,
		window:   time.Duration(windowSeconds) * time.Second,
		counters: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow checks whether the client is within rate limit. Returns false if exceeded.
func (rl *RateLimiter) Allow(client string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	// Prune old timestamps
	timestamps := rl.counters[client]
	pruned := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}

	if len(pruned) >= rl.limit {
		rl.counters[client] = pruned
		return false
	}

	rl.counters[client] = append(pruned, now)
	return true
}

// RetryAfter is the Retry-After value, in whole seconds, sent with a 429.
func (rl *RateLimiter) RetryAfter() int {
	return int(rl.window / time.Second)
}

// Sweep drops clients with no requests inside the window so the map does
// not grow with every address ever seen.
func (rl *RateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.window)
	for client, ts := range rl.counters {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(rl.counters, client)
		}
	}
}
