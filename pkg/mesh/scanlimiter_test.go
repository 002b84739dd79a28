package mesh

import (
	"testing"
	"time"
)

func TestScanRateLimiterAcquireUpToLimit(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	l := newScanRateLimiterWithClock(2, time.Minute, clock)

	if _, ok := l.TryAcquire(); !ok {
		t.Fatalf("first acquire should succeed")
	}
	if _, ok := l.TryAcquire(); !ok {
		t.Fatalf("second acquire should succeed")
	}
	if _, ok := l.TryAcquire(); ok {
		t.Fatalf("third acquire should be rejected, limit is 2")
	}
}

func TestScanRateLimiterWindowEviction(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	l := newScanRateLimiterWithClock(1, time.Minute, clock)

	if _, ok := l.TryAcquire(); !ok {
		t.Fatalf("first acquire should succeed")
	}
	if _, ok := l.TryAcquire(); ok {
		t.Fatalf("acquire within window should be rejected")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := l.TryAcquire(); !ok {
		t.Fatalf("acquire after window elapses should succeed")
	}
}

func TestScanRateLimiterRollback(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	l := newScanRateLimiterWithClock(1, time.Minute, clock)

	tok, ok := l.TryAcquire()
	if !ok {
		t.Fatalf("acquire should succeed")
	}
	l.Rollback(tok)
	if _, ok := l.TryAcquire(); !ok {
		t.Fatalf("acquire after rollback should succeed again")
	}
}

func TestScanRateLimiterAvailable(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	l := newScanRateLimiterWithClock(3, time.Minute, clock)

	if got := l.Available(); got != 3 {
		t.Fatalf("Available() = %d, want 3", got)
	}
	l.TryAcquire()
	if got := l.Available(); got != 2 {
		t.Fatalf("Available() after one acquire = %d, want 2", got)
	}
}
