// Package ratelimit paces outgoing API calls with a token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/suqaba/suqaba-cli/internal/logging"
)

// RateLimiter implements a token bucket rate limiter.
// It allows bursts up to maxTokens, then refills at refillRate tokens/second.
// A cooldown set after a server throttle blocks all callers until it expires.
type RateLimiter struct {
	tokens        float64
	maxTokens     float64
	refillRate    float64
	lastRefill    time.Time
	cooldownUntil time.Time
	lastWarnTime  time.Time
	logger        *logging.Logger
	mu            sync.Mutex
}

// NewRateLimiter creates a new rate limiter.
//
// Parameters:
//   - tokensPerSecond: Rate at which tokens are added (e.g., 10.0 for 10 tokens/second)
//   - burstSize: Maximum tokens that can accumulate (allows brief bursts)
func NewRateLimiter(tokensPerSecond float64, burstSize float64, logger *logging.Logger) *RateLimiter {
	if burstSize < 1 {
		burstSize = 1
	}
	return &RateLimiter{
		tokens:     burstSize, // Start with full bucket
		maxTokens:  burstSize,
		refillRate: tokensPerSecond,
		lastRefill: time.Now(),
		logger:     logger,
	}
}

// Wait blocks until a token is available or context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	startTime := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if rl.tryAcquire() {
			if waited := time.Since(startTime); waited > 5*time.Second {
				rl.logger.Info().Dur("waited", waited).Msg("rate limit wait completed")
			}
			return nil
		}

		waitDuration := rl.timeUntilNextToken()
		if waitDuration > 2*time.Second {
			rl.mu.Lock()
			if time.Since(rl.lastWarnTime) > 10*time.Second {
				rl.logger.Warn().Dur("wait", waitDuration).Msg("rate limited, waiting for API capacity")
				rl.lastWarnTime = time.Now()
			}
			rl.mu.Unlock()
		}

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// SetCooldown blocks token acquisition for d. A shorter cooldown never
// shortens one already in effect.
func (rl *RateLimiter) SetCooldown(d time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	until := time.Now().Add(d)
	if until.After(rl.cooldownUntil) {
		rl.cooldownUntil = until
	}
}

// CooldownRemaining returns how long the current cooldown still lasts.
func (rl *RateLimiter) CooldownRemaining() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if remaining := time.Until(rl.cooldownUntil); remaining > 0 {
		return remaining
	}
	return 0
}

// tryAcquire attempts to acquire one token without blocking.
func (rl *RateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.refillLocked(now)

	if now.Before(rl.cooldownUntil) {
		return false
	}

	if rl.tokens >= 1.0 {
		rl.tokens -= 1.0
		return true
	}

	return false
}

func (rl *RateLimiter) refillLocked(now time.Time) {
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now
}

// timeUntilNextToken calculates how long to wait until at least one token is available.
func (rl *RateLimiter) timeUntilNextToken() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if cooldown := time.Until(rl.cooldownUntil); cooldown > 0 {
		return cooldown
	}

	tokensNeeded := 1.0 - rl.tokens
	if tokensNeeded <= 0 {
		return 0
	}

	return time.Duration(tokensNeeded / rl.refillRate * float64(time.Second))
}

// GetCurrentTokens returns the current number of tokens (for testing/debugging).
func (rl *RateLimiter) GetCurrentTokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked(time.Now())
	return rl.tokens
}
