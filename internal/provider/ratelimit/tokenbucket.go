package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket is a non-blocking token bucket limiter sized to the
// upstream provider's call budget. Tokens refill lazily in proportion to
// elapsed time; there is no background timer. The bucket never blocks:
// on denial it reports how long until the next token, and the caller
// decides whether to wait, queue, or fall back to stale data.
type TokenBucket struct {
	rate     float64 // tokens per second
	capacity float64

	mu     sync.Mutex
	tokens float64
	last   time.Time

	now func() time.Time
}

// DefaultCapacity and DefaultWindow match the provider's free tier:
// 5 calls per 60-second window.
const (
	DefaultCapacity = 5
	DefaultWindow   = 60 * time.Second
)

// NewTokenBucket builds a bucket holding up to capacity tokens that
// refills fully over window. The bucket starts full.
func NewTokenBucket(capacity int, window time.Duration) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &TokenBucket{
		rate:     float64(capacity) / window.Seconds(),
		capacity: float64(capacity),
		tokens:   float64(capacity),
		last:     time.Now(),
		now:      time.Now,
	}
}

// Acquire takes one token if available. When denied, retryAfter is the
// time until the next whole token accumulates.
func (tb *TokenBucket) Acquire() (granted bool, retryAfter time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	elapsed := now.Sub(tb.last).Seconds()
	if elapsed > 0 {
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.last = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true, 0
	}

	deficit := 1 - tb.tokens
	retryAfter = time.Duration(deficit / tb.rate * float64(time.Second))
	if retryAfter <= 0 {
		retryAfter = time.Millisecond
	}
	return false, retryAfter
}

// RetryAfter reports the wait until a token becomes available without
// taking one. Zero when a call would be granted right now.
func (tb *TokenBucket) RetryAfter() time.Duration {
	if tb.Tokens() >= 1 {
		return 0
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
}

// Tokens reports the current token count after a lazy refill. Intended
// for status endpoints and tests.
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	elapsed := now.Sub(tb.last).Seconds()
	if elapsed > 0 {
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.last = now
	}
	return tb.tokens
}
