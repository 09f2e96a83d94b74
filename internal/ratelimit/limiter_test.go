package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/suqaba/suqaba-cli/internal/logging"
)

func newTestLimiter(rate, burst float64) *RateLimiter {
	return NewRateLimiter(rate, burst, logging.NewNop())
}

// TestNewRateLimiterStartsFull verifies the bucket starts at full capacity.
func TestNewRateLimiterStartsFull(t *testing.T) {
	rl := newTestLimiter(1.0, 10.0)
	if tokens := rl.GetCurrentTokens(); tokens < 9.9 {
		t.Errorf("expected ~10 tokens, got %.2f", tokens)
	}
}

// TestBurstBehavior verifies rapid consumption depletes the bucket.
func TestBurstBehavior(t *testing.T) {
	rl := newTestLimiter(1.0, 20.0)

	for i := 0; i < 20; i++ {
		if !rl.tryAcquire() {
			t.Fatalf("burst failed at token %d", i+1)
		}
	}

	if rl.tryAcquire() {
		t.Error("should fail after burst exhaustion")
	}
}

// TestTokenRefill verifies tokens refill over time and cap at max.
func TestTokenRefill(t *testing.T) {
	rl := newTestLimiter(10.0, 10.0)
	for i := 0; i < 10; i++ {
		rl.tryAcquire()
	}

	time.Sleep(200 * time.Millisecond)

	tokens := rl.GetCurrentTokens()
	if tokens < 1.5 || tokens > 3.0 {
		t.Errorf("expected ~2 tokens after 200ms at 10/sec, got %.2f", tokens)
	}

	fast := newTestLimiter(100.0, 5.0)
	time.Sleep(50 * time.Millisecond)
	if tokens := fast.GetCurrentTokens(); tokens > 5.1 {
		t.Errorf("tokens should cap at 5, got %.2f", tokens)
	}
}

// TestWaitBlocksUntilTokenAvailable verifies Wait blocks and then succeeds.
func TestWaitBlocksUntilTokenAvailable(t *testing.T) {
	rl := newTestLimiter(10.0, 1.0)
	rl.tryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("Wait() returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond || elapsed > 300*time.Millisecond {
		t.Errorf("Wait() took %v, expected ~100ms", elapsed)
	}
}

// TestWaitRespectsContextCancellation verifies Wait returns on context cancel.
func TestWaitRespectsContextCancellation(t *testing.T) {
	rl := newTestLimiter(0.1, 1.0)
	rl.tryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
}

// TestSetCooldown verifies cooldown blocks Wait even with a full bucket.
func TestSetCooldown(t *testing.T) {
	rl := newTestLimiter(100.0, 100.0)
	rl.SetCooldown(200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("Wait() during cooldown returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond || elapsed > 400*time.Millisecond {
		t.Errorf("Wait() during cooldown took %v, expected ~200ms", elapsed)
	}
}

// TestCooldownMergeDoesNotShorten verifies a shorter cooldown is ignored.
func TestCooldownMergeDoesNotShorten(t *testing.T) {
	rl := newTestLimiter(100.0, 100.0)

	rl.SetCooldown(500 * time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	rl.SetCooldown(100 * time.Millisecond)

	if remaining := rl.CooldownRemaining(); remaining < 350*time.Millisecond {
		t.Errorf("cooldown shortened to %v, should still be ~400ms+", remaining)
	}
}

// TestCooldownExpires verifies cooldown eventually reaches zero.
func TestCooldownExpires(t *testing.T) {
	rl := newTestLimiter(1.0, 1.0)
	if d := rl.CooldownRemaining(); d != 0 {
		t.Errorf("CooldownRemaining() = %v, want 0", d)
	}

	rl.SetCooldown(100 * time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	if d := rl.CooldownRemaining(); d != 0 {
		t.Errorf("CooldownRemaining() = %v, want 0 (cooldown should have expired)", d)
	}
}

// TestConcurrentAccess verifies thread safety under contention.
func TestConcurrentAccess(t *testing.T) {
	rl := newTestLimiter(100.0, 50.0)

	var wg sync.WaitGroup
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if err := rl.Wait(ctx); err != nil {
					return
				}
			}
		}()
	}

	wg.Wait()
}
