// Package ratelimiter throttles actions per key with token buckets.
package ratelimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per key. Every key refills at the same
// rate and can hold up to burst tokens.
//
// Example usage:
//
//	rl := ratelimiter.NewRateLimiter(6, 2) // 6 per minute, 2 at once
//	if !rl.Allow(documentID) {
//	    return rl.RetryAfter(documentID)
//	}
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	limit    rate.Limit
	burst    int
	now      func() time.Time
	idle     time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing perMinute events per key.
// perMinute below 1 is raised to 1; burst below 1 is raised to 1.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(float64(perMinute) / 60.0)
	return &RateLimiter{
		limiters: make(map[string]*entry),
		limit:    limit,
		burst:    burst,
		now:      time.Now,
		// a bucket untouched this long is full again and can be dropped
		idle: time.Duration(float64(burst)/float64(limit)*float64(time.Second)) + time.Minute,
	}
}

// Allow consumes a token for key and reports whether one was available
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)
	return rl.limiterFor(key, now).AllowN(now, 1)
}

// RetryAfter returns how long until key has a token again. Zero means Allow
// would succeed now.
func (rl *RateLimiter) RetryAfter(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	r := rl.limiterFor(key, now).ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return delay
}

// Reset forgets key so its next event starts from a full bucket
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, key)
}

// Len returns the number of tracked keys
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	e, ok := rl.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// prune must be called with the lock held
func (rl *RateLimiter) prune(now time.Time) {
	for key, e := range rl.limiters {
		if now.Sub(e.lastSeen) > rl.idle {
			delete(rl.limiters, key)
		}
	}
}
