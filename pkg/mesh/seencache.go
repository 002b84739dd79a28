package mesh

import (
	"sync"
	"time"

	"github.com/zeebo/blake3"
)

// Fingerprint is a content-addressed identifier for a packet, used to
// suppress re-delivery of the same flood (§4.B). Any stable hash of the
// bytes qualifies; blake3 is fast enough to run on every inbound/outbound
// frame on a busy link without becoming the bottleneck.
type Fingerprint [32]byte

// Fingerprint64 hashes bytes into a Fingerprint.
func Fingerprint64(b []byte) Fingerprint {
	return Fingerprint(blake3.Sum256(b))
}

// SeenPacketCache is a bounded, time-windowed set of packet fingerprints
// used for flood dedup (§4.B, §8 invariant 4).
type SeenPacketCache struct {
	timeout time.Duration
	now     func() time.Time

	mu   sync.Mutex
	seen map[Fingerprint]time.Time
}

// NewSeenPacketCache creates a cache that evicts entries older than timeout.
func NewSeenPacketCache(timeout time.Duration) *SeenPacketCache {
	return newSeenPacketCacheWithClock(timeout, time.Now)
}

func newSeenPacketCacheWithClock(timeout time.Duration, now func() time.Time) *SeenPacketCache {
	return &SeenPacketCache{
		timeout: timeout,
		now:     now,
		seen:    make(map[Fingerprint]time.Time),
	}
}

// Mark records the fingerprint of b and reports whether it was newly
// inserted (true) or already present within the window (false).
func (c *SeenPacketCache) Mark(b []byte) bool {
	return c.MarkFingerprint(Fingerprint64(b))
}

// MarkFingerprint is Mark for a fingerprint already computed by the caller.
func (c *SeenPacketCache) MarkFingerprint(f Fingerprint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.seen[f]; ok && now.Sub(last) <= c.timeout {
		return false
	}
	c.seen[f] = now
	return true
}

// Sweep removes fingerprints older than the configured timeout. Intended
// to be called periodically by the controller.
func (c *SeenPacketCache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for f, at := range c.seen {
		if now.Sub(at) > c.timeout {
			delete(c.seen, f)
		}
	}
}

// Len reports the number of tracked fingerprints (test/metrics helper).
func (c *SeenPacketCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
