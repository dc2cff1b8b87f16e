package ai

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a process-wide token bucket keyed by model id. Each model
// gets requests-per-window tokens; Acquire blocks until a token is free or
// the context is cancelled. One limiter is shared by every operation.
type RateLimiter struct {
	mu       sync.Mutex
	requests int
	window   time.Duration
	buckets  map[string]*bucket
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a limiter allowing requests per window per model.
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		requests: requests,
		window:   window,
		buckets:  make(map[string]*bucket),
	}
}

// Acquire blocks until a token for model is available. It re-checks the
// context between waits, so cancellation is observed promptly.
func (r *RateLimiter) Acquire(ctx context.Context, model string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait := r.tryTake(model)
		if wait <= 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryTake consumes a token if one is available and otherwise returns how
// long to wait before the next token accrues.
func (r *RateLimiter) tryTake(model string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[model]
	now := time.Now()
	if !ok {
		b = &bucket{tokens: float64(r.requests), lastRefill: now}
		r.buckets[model] = b
	}

	refillRate := float64(r.requests) / r.window.Seconds()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * refillRate
	if b.tokens > float64(r.requests) {
		b.tokens = float64(r.requests)
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return 0
	}
	deficit := 1 - b.tokens
	return time.Duration(deficit / refillRate * float64(time.Second))
}
