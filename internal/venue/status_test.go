package venue

import (
	"testing"
	"time"
)

func TestConnTrackerTransitions(t *testing.T) {
	c := NewConnTracker()
	if c.Status() != StatusDisconnected {
		t.Fatalf("initial status = %s", c.Status())
	}

	c.SetStatus(StatusConnecting)
	c.IncrementAttempts()
	c.IncrementAttempts()
	if c.Attempts() != 2 {
		t.Fatalf("attempts = %d, want 2", c.Attempts())
	}

	// Entering Connected resets the counter
	c.SetStatus(StatusConnected)
	if c.Attempts() != 0 {
		t.Fatalf("attempts after connect = %d, want 0", c.Attempts())
	}
	if c.Status() != StatusConnected {
		t.Fatalf("status = %s", c.Status())
	}
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 60 * time.Second, MaxAttempts: 8}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 32 * time.Second},
		{7, 60 * time.Second},   // 64s capped
		{100, 60 * time.Second}, // far past the cap
		{0, time.Second},        // clamped to attempt 1
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffExhausted(t *testing.T) {
	b := Backoff{Base: time.Second, Max: time.Minute, MaxAttempts: 3}
	if b.Exhausted(2) {
		t.Errorf("attempt 2 should not be exhausted")
	}
	if !b.Exhausted(3) {
		t.Errorf("attempt 3 should be exhausted")
	}
}
