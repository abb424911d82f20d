package ratelimiter

import (
	"context"
	"testing"
	"time"
)

// TestNew verifies rate limiter creation with different parameters.
func TestNew(t *testing.T) {
	tests := []struct {
		name              string
		requestsPerSecond uint
		burst             uint
	}{
		{name: "standard rate", requestsPerSecond: 100, burst: 200},
		{name: "low rate", requestsPerSecond: 1, burst: 2},
		{name: "zero burst", requestsPerSecond: 5, burst: 0},
		{name: "unlimited (zero rate)", requestsPerSecond: 0, burst: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.requestsPerSecond, tt.burst)
			if limiter == nil || limiter.limiter == nil {
				t.Fatal("New() returned an unusable limiter")
			}
		})
	}
}

// TestAllow verifies that Allow() enforces the burst capacity.
func TestAllow(t *testing.T) {
	limiter := New(10, 10)

	for i := 0; i < 10; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d should be allowed (within burst)", i)
		}
	}

	if limiter.Allow() {
		t.Error("request beyond burst should be denied")
	}
}

func TestWaitContextCancellation(t *testing.T) {
	limiter := New(1, 1)
	limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Error("Wait should fail with a cancelled context")
	}
}

func TestUnlimitedRate(t *testing.T) {
	limiter := New(0, 0)
	for i := 0; i < 10000; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d denied by unlimited limiter", i)
		}
	}
}

func TestKeyedLimiter_IndependentKeys(t *testing.T) {
	k := NewKeyed(1, 2, time.Minute)

	if !k.Allow("u1") || !k.Allow("u1") {
		t.Fatal("first two requests for u1 should be allowed")
	}
	if k.Allow("u1") {
		t.Error("third request for u1 should be denied")
	}
	if !k.Allow("u2") {
		t.Error("u2 must not be affected by u1's usage")
	}
}

func TestKeyedLimiter_EvictsIdleKeys(t *testing.T) {
	k := NewKeyed(1, 1, time.Minute)
	now := time.Now()
	k.now = func() time.Time { return now }

	k.Allow("u1")
	k.Allow("u2")
	if k.Len() != 2 {
		t.Fatalf("expected 2 tracked keys, got %d", k.Len())
	}

	now = now.Add(2 * time.Minute)
	k.Allow("u3")

	if k.Len() != 1 {
		t.Errorf("expected idle keys to be evicted, %d keys tracked", k.Len())
	}
}
