// Package ratelimit paces remote fetches so the host CDN is not hammered
// by back-to-back rendition downloads.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow reports whether a request may proceed right now.
	Allow() bool
	// Wait blocks until the limiter admits another request.
	Wait()
	// Reset restores the limiter to its initial state.
	Reset()
}

// TokenBucket is a token bucket limiter refilled continuously at a fixed
// per-token interval.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	perToken   time.Duration
	lastRefill time.Time
}

// NewTokenBucket creates a limiter admitting up to capacity requests per
// window, with tokens trickling back evenly across the window.
func NewTokenBucket(capacity int, window time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		perToken:   window / time.Duration(capacity),
		lastRefill: time.Now(),
	}
}

// Allow consumes a token if one is available.
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

// Wait blocks until a token is available.
func (tb *TokenBucket) Wait() {
	for {
		tb.mu.Lock()
		tb.refill(time.Now())
		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return
		}
		deficit := 1 - tb.tokens
		sleep := time.Duration(deficit * float64(tb.perToken))
		tb.mu.Unlock()

		if sleep < 10*time.Millisecond {
			sleep = 10 * time.Millisecond
		}
		time.Sleep(sleep)
	}
}

// Reset restores the bucket to full capacity.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

// refill credits tokens for the time elapsed since the last refill.
// Caller must hold tb.mu.
func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		return
	}
	tb.tokens += float64(elapsed) / float64(tb.perToken)
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

// Unlimited is a Limiter that always admits. Used in tests and when rate
// limiting is disabled.
type Unlimited struct{}

func (Unlimited) Allow() bool { return true }
func (Unlimited) Wait()       {}
func (Unlimited) Reset()      {}
