package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterAllowsBurstUpToCapacity(t *testing.T) {
	lim := New(1000) // 1000 B/s, capacity 2000 B
	start := time.Now()
	lim.Wait(1800)
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("expected burst within capacity to return immediately, took %v", elapsed)
	}
}

func TestLimiterThrottlesOverCapacity(t *testing.T) {
	lim := New(1000) // capacity 2000 B
	lim.Wait(2000)   // drain the bucket

	start := time.Now()
	lim.Wait(500) // needs ~500ms of refill at 1000 B/s
	elapsed := time.Since(start)
	if elapsed < 400*time.Millisecond {
		t.Fatalf("expected throttling to take ~500ms, took %v", elapsed)
	}
}

func TestLimiterZeroRateDisablesLimiting(t *testing.T) {
	lim := New(0)
	start := time.Now()
	lim.Wait(10_000_000)
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Fatalf("expected disabled limiter to return immediately, took %v", elapsed)
	}
}

func TestLimiterSustainedRateBound(t *testing.T) {
	// Over a sliding window after the bucket is drained, forwarded bytes
	// must not exceed rate + capacity (testable property from spec.md §8).
	const rate = int64(10_000)
	lim := New(rate)
	lim.Wait(int(2 * rate)) // drain burst capacity

	start := time.Now()
	var sent int64
	for time.Since(start) < time.Second {
		lim.Wait(500)
		sent += 500
	}
	maxAllowed := rate + 2*rate // rate*window + capacity, window ~= 1s
	if sent > maxAllowed+1000 {
		t.Fatalf("sent %d bytes in ~1s, exceeds rate+capacity bound %d", sent, maxAllowed)
	}
}
