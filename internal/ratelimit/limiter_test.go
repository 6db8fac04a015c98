package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAcquireWithinBurst(t *testing.T) {
	l := NewLimiter(10, 5)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Acquire(ctx, 1); err != nil {
			t.Fatalf("acquire %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("burst acquisitions should not block, took %s", elapsed)
	}
}

func TestAcquireBlocksWhenExhausted(t *testing.T) {
	// 10 tokens/sec, burst 2: the third single-weight call must wait for a
	// refill, so 4 calls need at least 2 tokens beyond the burst.
	l := NewLimiter(10, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := l.Acquire(ctx, 1); err != nil {
			t.Fatalf("acquire %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("expected refill wait of at least 200ms, took %s", elapsed)
	}
}

func TestAcquireWeightExceedsCapacity(t *testing.T) {
	l := NewLimiter(10, 5)
	if err := l.Acquire(context.Background(), 6); err == nil {
		t.Fatalf("expected error for weight above capacity")
	}
}

func TestAcquireRespectsContext(t *testing.T) {
	l := NewLimiter(1, 1)
	if err := l.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx, 1); err == nil {
		t.Fatalf("expected context deadline error")
	}
}

func TestAllow(t *testing.T) {
	l := NewLimiter(10, 2)
	if !l.Allow(2) {
		t.Fatalf("expected full burst to be available")
	}
	if l.Allow(2) {
		t.Fatalf("expected bucket to be drained")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if r.Get("binance") != nil {
		t.Fatalf("expected nil for unregistered venue")
	}
	l := r.Register("binance", 10, 20)
	if got := r.Get("binance"); got != l {
		t.Fatalf("registry returned a different limiter")
	}
	if l.Capacity() != 20 {
		t.Errorf("unexpected capacity: %d", l.Capacity())
	}
}
