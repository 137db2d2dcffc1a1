package mcp

import (
	"sync"
	"time"
)

// RateLimiter implements a token bucket per minute with an optional hourly cap
type RateLimiter struct {
	rate       int       // requests per minute, 0 disables the limiter
	tokens     int       // current tokens
	maxTokens  int       // max tokens (burst)
	lastUpdate time.Time // last token update

	hourly      int // requests per hour, 0 means no cap
	hourCount   int
	windowStart time.Time

	now func() time.Time
	mu  sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(perMinute, perHour int) *RateLimiter {
	return newRateLimiter(perMinute, perHour, time.Now)
}

func newRateLimiter(perMinute, perHour int, now func() time.Time) *RateLimiter {
	start := now()
	return &RateLimiter{
		rate:        perMinute,
		tokens:      perMinute,
		maxTokens:   perMinute * 2, // Allow burst of 2x rate
		lastUpdate:  start,
		hourly:      perHour,
		windowStart: start,
		now:         now,
	}
}

// Allow reports whether a call to the tool may run and consumes a token
func (r *RateLimiter) Allow(tool string) bool {
	if r == nil || r.rate <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens <= 0 {
		return false
	}
	if r.hourly > 0 && r.hourCount >= r.hourly {
		return false
	}
	r.tokens--
	r.hourCount++
	return true
}

// Available reports whether a call would currently be allowed, without consuming a token
func (r *RateLimiter) Available() bool {
	if r == nil || r.rate <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	return r.tokens > 0 && (r.hourly <= 0 || r.hourCount < r.hourly)
}

func (r *RateLimiter) refill() {
	now := r.now()
	tokensToAdd := int(now.Sub(r.lastUpdate).Minutes() * float64(r.rate))
	if tokensToAdd > 0 {
		r.tokens = min(r.tokens+tokensToAdd, r.maxTokens)
		r.lastUpdate = now
	}
	if now.Sub(r.windowStart) >= time.Hour {
		r.windowStart = now
		r.hourCount = 0
	}
}
