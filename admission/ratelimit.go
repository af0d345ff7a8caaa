// Package admission gates access to the expensive model path. Two
// independent mechanisms are enforced: a per-client sliding-window rate
// limit and a process-wide concurrency cap. Both must pass before a model
// call is made; denial is immediate rejection, never queueing.
package admission

import (
	"sync"
	"time"
)

// RateLimiter enforces a per-client sliding-window request limit.
type RateLimiter struct {
	maxRequests int
	window      time.Duration

	mu       sync.Mutex
	requests map[string][]time.Time

	// now is injectable for tests.
	now func() time.Time
}

// NewRateLimiter creates a limiter allowing maxRequests per client key
// within a trailing window.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
		now:         time.Now,
	}
}

// Allow reports whether the client may proceed, recording the request
// timestamp when it may. Expired timestamps are pruned lazily on each call.
func (rl *RateLimiter) Allow(clientKey string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	recent := rl.requests[clientKey][:0]
	for _, t := range rl.requests[clientKey] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rl.maxRequests {
		rl.requests[clientKey] = recent
		return false
	}

	rl.requests[clientKey] = append(recent, now)
	return true
}

// RetryAfter returns the suggested client wait on rejection.
func (rl *RateLimiter) RetryAfter() time.Duration {
	return rl.window
}

// Prune drops clients whose every timestamp has aged out of the window.
// Called periodically so idle clients do not accumulate forever.
func (rl *RateLimiter) Prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for key, times := range rl.requests {
		live := false
		for _, t := range times {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(rl.requests, key)
		}
	}
}
