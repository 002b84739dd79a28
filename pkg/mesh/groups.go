package mesh

import (
	"sync"
	"time"
)

// GroupTracker aggregates DiscoveredPeer scan results into DiscoveredGroup
// entries by groupName, for the Discovering state's UI-facing listing
// (§3, §4.H). Entries are evicted after GROUP_ADVERTISEMENT_TIMEOUT of
// silence.
type GroupTracker struct {
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	groups map[string]*DiscoveredGroup
}

// NewGroupTracker creates a tracker evicting groups after timeout of
// silence.
func NewGroupTracker(timeout time.Duration) *GroupTracker {
	return newGroupTrackerWithClock(timeout, time.Now)
}

func newGroupTrackerWithClock(timeout time.Duration, now func() time.Time) *GroupTracker {
	return &GroupTracker{
		timeout: timeout,
		now:     now,
		groups:  make(map[string]*DiscoveredGroup),
	}
}

// Observe records a scan result, creating or updating the aggregate for
// its groupName (tracking the highest RSSI seen and the latest sighting).
func (t *GroupTracker) Observe(peer DiscoveredPeer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	g, ok := t.groups[peer.GroupName]
	if !ok {
		t.groups[peer.GroupName] = &DiscoveredGroup{
			GroupName:   peer.GroupName,
			HighestRSSI: peer.RSSI,
			LastSeenAt:  now,
		}
		return
	}
	if peer.RSSI > g.HighestRSSI {
		g.HighestRSSI = peer.RSSI
	}
	g.LastSeenAt = now
}

// Sweep evicts groups that haven't been seen within the timeout.
func (t *GroupTracker) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for name, g := range t.groups {
		if now.Sub(g.LastSeenAt) > t.timeout {
			delete(t.groups, name)
		}
	}
}

// Snapshot returns a copy of every currently tracked group.
func (t *GroupTracker) Snapshot() []DiscoveredGroup {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]DiscoveredGroup, 0, len(t.groups))
	for _, g := range t.groups {
		out = append(out, *g)
	}
	return out
}

// Reset clears every tracked group (called on leaving Discovering).
func (t *GroupTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.groups = make(map[string]*DiscoveredGroup)
}
