package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a per-actor token bucket.
type RateLimiter struct {
	mu     sync.Mutex
	actors map[string]*rate.Limiter
	rps    rate.Limit
	burst  int
}

// NewRateLimiter allows rps requests per second per actor with the given
// burst. burst < 1 defaults to max(1, 2*rps).
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = int(2 * rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		actors: make(map[string]*rate.Limiter),
		rps:    rate.Limit(rps),
		burst:  burst,
	}
}

// Allow reports whether a request from userID may proceed.
func (rl *RateLimiter) Allow(userID string) bool {
	rl.mu.Lock()
	limiter, ok := rl.actors[userID]
	if !ok {
		limiter = rate.NewLimiter(rl.rps, rl.burst)
		rl.actors[userID] = limiter
	}
	rl.mu.Unlock()
	return limiter.Allow()
}
