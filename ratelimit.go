package rawgkit

import (
	"sync"
	"time"
)

// RateLimiter is a token-bucket limiter applied before a request goes out.
// RAWG enforces per-key request quotas; rejecting locally keeps a burst of
// fetches from burning through the quota and the retry budget at once.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

// NewRateLimiter creates a bucket of maxTokens that regains one token every
// refillRate.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		maxTokens:  maxTokens,
		tokens:     maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow consumes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if rl.refillRate > 0 {
		refilled := int(now.Sub(rl.lastRefill) / rl.refillRate)
		if refilled > 0 {
			rl.tokens += refilled
			if rl.tokens > rl.maxTokens {
				rl.tokens = rl.maxTokens
			}
			rl.lastRefill = rl.lastRefill.Add(time.Duration(refilled) * rl.refillRate)
		}
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// Tokens reports the current token count, for metrics.
func (rl *RateLimiter) Tokens() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.tokens
}
