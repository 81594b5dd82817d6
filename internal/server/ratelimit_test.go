package server

import (
	"testing"
	"time"
)

func TestRateLimiter_SlidingWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(3, 10)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.1.1.1") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if rl.Allow("10.1.1.1") {
		t.Error("4th request inside the window should be denied")
	}
	if !rl.Allow("10.1.1.2") {
		t.Error("other clients have their own window")
	}

	now = now.Add(11 * time.Second)
	if !rl.Allow("10.1.1.1") {
		t.Error("request after the window should be allowed")
	}
}

func TestRateLimiter_Unlimited(t *testing.T) {
	rl := NewRateLimiter(0, 60)
	for i := 0; i < 1000; i++ {
		if !rl.Allow("c") {
			t.Fatal("limit 0 should never deny")
		}
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, 10)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(8 * time.Second)
	rl.Allow("recent")
	now = now.Add(5 * time.Second)
	rl.Sweep()

	if _, ok := rl.counters["old"]; ok {
		t.Error("idle client should be swept")
	}
	if _, ok := rl.counters["recent"]; !ok {
		t.Error("active client should be kept")
	}
}

func TestRateLimiter_RetryAfter(t *testing.T) {
	if got := NewRateLimiter(5, 30).RetryAfter(); got != 30 {
		t.Errorf("RetryAfter = %d, want 30", got)
	}
	if got := NewRateLimiter(5, 0).RetryAfter(); got != 60 {
		t.Errorf("default RetryAfter = %d, want 60", got)
	}
}
