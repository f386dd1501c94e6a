package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter gates requests against the upstream API's per-client rate ceiling.
// One shared instance is injected into every fetcher; all collections draw
// from the same bucket.
type Limiter interface {
	// Allow reports whether a request may proceed right now, consuming a
	// token if so
	Allow() bool
	// Acquire blocks until a token is available or the context is done.
	// It never fails for rate reasons, only on cancellation.
	Acquire(ctx context.Context) error
	// Reset restores the limiter to full capacity
	Reset()
}

// TokenBucket implements a token bucket with even refill: capacity equals the
// per-minute ceiling and one token is minted every minute/ceiling, capped at
// capacity. Bursts are bounded to one minute's worth of requests.
type TokenBucket struct {
	capacity       float64
	tokens         float64
	refillInterval time.Duration // time to mint one token
	lastRefill     time.Time
	mu             sync.Mutex
}

// NewTokenBucket creates a token bucket for the given requests-per-minute ceiling
func NewTokenBucket(requestsPerMinute int) *TokenBucket {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}
	return &TokenBucket{
		capacity:       float64(requestsPerMinute),
		tokens:         float64(requestsPerMinute),
		refillInterval: time.Minute / time.Duration(requestsPerMinute),
		lastRefill:     time.Now(),
	}
}

// Allow consumes a token if one is available
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(time.Now())
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// Acquire blocks until a token is available or ctx is cancelled
func (tb *TokenBucket) Acquire(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		tb.refill(now)
		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}
		// Time until the next whole token is minted
		deficit := 1 - tb.tokens
		wait := time.Duration(deficit * float64(tb.refillInterval))
		tb.mu.Unlock()

		if wait < time.Millisecond {
			wait = time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Reset restores the bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

// refill mints tokens for the elapsed time, capped at capacity.
// Caller must hold the mutex.
func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		return
	}
	minted := float64(elapsed) / float64(tb.refillInterval)
	tb.tokens += minted
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

// Unlimited returns a limiter that never delays, for tests
func Unlimited() Limiter {
	return unlimitedLimiter{}
}

type unlimitedLimiter struct{}

func (unlimitedLimiter) Allow() bool                       { return true }
func (unlimitedLimiter) Acquire(ctx context.Context) error { return ctx.Err() }
func (unlimitedLimiter) Reset()                            {}
