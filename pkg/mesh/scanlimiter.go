package mesh

import (
	"sync"
	"time"
)

// ScanToken is returned by ScanRateLimiter.TryAcquire and must be passed
// to Rollback if the reserved scan start never actually happens (the
// hardware start call failed after the reservation was made).
type ScanToken struct {
	at time.Time
}

// ScanRateLimiter enforces the platform "at most N scan starts per window"
// budget (§4.C). It is safe for concurrent use.
type ScanRateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	starts []time.Time
}

// NewScanRateLimiter creates a limiter allowing limit starts per window.
func NewScanRateLimiter(limit int, window time.Duration) *ScanRateLimiter {
	return newScanRateLimiterWithClock(limit, window, time.Now)
}

func newScanRateLimiterWithClock(limit int, window time.Duration, now func() time.Time) *ScanRateLimiter {
	return &ScanRateLimiter{limit: limit, window: window, now: now}
}

// TryAcquire reserves a scan-start slot if fewer than limit starts occurred
// within the last window. Returns (token, true) on success.
func (l *ScanRateLimiter) TryAcquire() (ScanToken, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evictLocked(now)

	if len(l.starts) >= l.limit {
		return ScanToken{}, false
	}
	tok := ScanToken{at: now}
	l.starts = append(l.starts, now)
	return tok, true
}

// Rollback returns a previously acquired token to the pool. Used when the
// hardware start call fails after the reservation succeeded, so the
// failed attempt doesn't count against the budget.
func (l *ScanRateLimiter) Rollback(tok ScanToken) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, t := range l.starts {
		if t.Equal(tok.at) {
			l.starts = append(l.starts[:i], l.starts[i+1:]...)
			return
		}
	}
}

// evictLocked drops timestamps older than the window. Caller holds mu.
func (l *ScanRateLimiter) evictLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for ; i < len(l.starts); i++ {
		if l.starts[i].After(cutoff) {
			break
		}
	}
	l.starts = l.starts[i:]
}

// Available reports how many scan starts remain in the current window.
func (l *ScanRateLimiter) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictLocked(l.now())
	return l.limit - len(l.starts)
}
