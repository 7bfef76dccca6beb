package api

import (
	"sync"
	"time"
)

// rateLimiter is a token bucket guarding one connection's inbound frames.
// A nil *rateLimiter allows everything.
type rateLimiter struct {
	tokens     float64
	burst      float64
	perSecond  float64
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

func newRateLimiter(perSecond, burst int) *rateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		tokens:     float64(burst),
		burst:      float64(burst),
		perSecond:  float64(perSecond),
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.tokens += now.Sub(r.lastRefill).Seconds() * r.perSecond
	if r.tokens > r.burst {
		r.tokens = r.burst
	}
	r.lastRefill = now

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}
