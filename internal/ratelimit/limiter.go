// Package ratelimit provides weighted request budgeting for venue APIs.
// Each venue gets its own token bucket; heavier endpoints consume more of
// the budget per call.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps a token bucket refilled at a fixed per-second rate. Acquire
// blocks until the requested weight is available or the context is done.
type Limiter struct {
	bucket   *rate.Limiter
	capacity int
}

// NewLimiter builds a limiter refilling requestsPerSecond tokens with the
// given burst capacity. A call of weight w consumes w tokens.
func NewLimiter(requestsPerSecond, burstSize int) *Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	if burstSize <= 0 {
		burstSize = requestsPerSecond
	}
	return &Limiter{
		bucket:   rate.NewLimiter(rate.Limit(requestsPerSecond), burstSize),
		capacity: burstSize,
	}
}

// Acquire blocks until weight tokens are available. Weights above the bucket
// capacity can never be satisfied and fail immediately.
func (l *Limiter) Acquire(ctx context.Context, weight int) error {
	if weight <= 0 {
		weight = 1
	}
	if weight > l.capacity {
		return fmt.Errorf("request weight %d exceeds bucket capacity %d", weight, l.capacity)
	}
	if err := l.bucket.WaitN(ctx, weight); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Allow reports whether weight tokens are available right now without
// blocking, consuming them when they are.
func (l *Limiter) Allow(weight int) bool {
	if weight <= 0 {
		weight = 1
	}
	return l.bucket.AllowN(time.Now(), weight)
}

// Capacity returns the burst capacity of the bucket.
func (l *Limiter) Capacity() int {
	return l.capacity
}

// Registry holds one limiter per venue so callers share the venue budget
// regardless of which component issues the request.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*Limiter)}
}

// Register installs a limiter for the named venue, replacing any previous
// limiter.
func (r *Registry) Register(venue string, requestsPerSecond, burstSize int) *Limiter {
	l := NewLimiter(requestsPerSecond, burstSize)
	r.mu.Lock()
	r.limiters[venue] = l
	r.mu.Unlock()
	return l
}

// Get returns the limiter for the venue, or nil when none is registered.
func (r *Registry) Get(venue string) *Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[venue]
}
