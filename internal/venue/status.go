package venue

import (
	"sync"
	"time"
)

// Status is the connection state of an adapter.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	// StatusError is reached on failure from any state. Once the
	// reconnect budget is exhausted the adapter stays here until an
	// operator intervenes with an explicit Connect.
	StatusError Status = "error"
)

// ConnTracker records an adapter's connection state and the reconnect
// attempt counter. Adapters embed it; the manager reads it through the
// Adapter interface.
type ConnTracker struct {
	mu       sync.RWMutex
	status   Status
	attempts int
	since    time.Time
}

func NewConnTracker() *ConnTracker {
	return &ConnTracker{status: StatusDisconnected, since: time.Now()}
}

func (c *ConnTracker) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// SetStatus transitions to the given state. Entering Connected resets
// the attempt counter.
func (c *ConnTracker) SetStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != s {
		c.since = time.Now()
	}
	c.status = s
	if s == StatusConnected {
		c.attempts = 0
	}
}

// Attempts returns the consecutive failed reconnect count.
func (c *ConnTracker) Attempts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attempts
}

// IncrementAttempts bumps the failed reconnect counter and returns the
// new value.
func (c *ConnTracker) IncrementAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	return c.attempts
}

// ResetAttempts clears the counter, used on a successful manual connect.
func (c *ConnTracker) ResetAttempts() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts = 0
}

// StatusSince reports how long the tracker has been in its current state.
func (c *ConnTracker) StatusSince() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.since
}

// Backoff computes exponential reconnect delays: base << (attempt-1),
// capped at Max. Attempts beyond MaxAttempts are the caller's signal to
// stop retrying.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// Delay returns the wait before the given 1-based attempt. Attempt
// values below 1 are treated as 1.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Shift overflows past ~63 doublings; anything that large is capped
	// anyway.
	if attempt > 32 {
		return b.Max
	}
	d := b.Base << uint(attempt-1)
	if d > b.Max || d < b.Base {
		return b.Max
	}
	return d
}

// Exhausted reports whether the attempt budget is spent.
func (b Backoff) Exhausted(attempt int) bool {
	return attempt >= b.MaxAttempts
}
