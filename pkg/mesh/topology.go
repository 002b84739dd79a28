package mesh

import "time"

// TopologyResult reports the outcome of an event applied to TopologyEngine.
type TopologyResult int

const (
	TopologyUnchanged TopologyResult = iota
	TopologyChanged
	TopologyDowngraded
)

func (r TopologyResult) String() string {
	switch r {
	case TopologyUnchanged:
		return "unchanged"
	case TopologyChanged:
		return "changed"
	case TopologyDowngraded:
		return "downgraded"
	default:
		return "unknown"
	}
}

// TopologyState is the node's current view of its spanning-tree position
// (§3, §4.F). Invariants: if NetworkID == own node id then HopsToRoot == 0;
// RootSequence strictly increases while self-root; any accepted incoming
// (networkId, sequence) pair strictly dominates the prior one.
type TopologyState struct {
	NetworkID       NodeID
	HopsToRoot      uint8
	RootSequence    int32
	LastHeartbeatAt time.Time
}

// TopologyEngine is a pure function of the heartbeat event stream plus a
// wall-clock tick (§2, §4.F). It holds no transport or peer knowledge.
type TopologyEngine struct {
	ownNodeID NodeID
	now       func() time.Time

	state TopologyState
}

// NewTopologyEngine creates an engine rooted at ownNodeID (NetworkID ==
// ownNodeID, hops 0, sequence 0 — the initial, self-root state).
func NewTopologyEngine(ownNodeID NodeID) *TopologyEngine {
	return newTopologyEngineWithClock(ownNodeID, time.Now)
}

func newTopologyEngineWithClock(ownNodeID NodeID, now func() time.Time) *TopologyEngine {
	return &TopologyEngine{
		ownNodeID: ownNodeID,
		now:       now,
		state: TopologyState{
			NetworkID:       ownNodeID,
			HopsToRoot:      0,
			RootSequence:    0,
			LastHeartbeatAt: now(),
		},
	}
}

// State returns a snapshot of the current topology state.
func (e *TopologyEngine) State() TopologyState {
	return e.state
}

// IsRoot reports whether this node currently believes itself root of its
// island.
func (e *TopologyEngine) IsRoot() bool {
	return e.state.NetworkID == e.ownNodeID
}

// OnHeartbeat applies an inbound heartbeat (netId, seq, hops) per the
// merge/refresh/unchanged ordering in §4.F:
//
//  1. Merge/adopt: netId > currentNetworkId -> adopt, hops+1, seq.
//  2. Refresh: netId == currentNetworkId && seq > currentRootSequence ->
//     update hops+1, seq.
//  3. Otherwise: Unchanged.
func (e *TopologyEngine) OnHeartbeat(hb HeartbeatPayload) TopologyResult {
	switch {
	case hb.NetworkID > e.state.NetworkID:
		e.state.NetworkID = hb.NetworkID
		e.state.HopsToRoot = hb.HopsToRoot + 1
		e.state.RootSequence = hb.Sequence
		e.state.LastHeartbeatAt = e.now()
		return TopologyChanged

	case hb.NetworkID == e.state.NetworkID && hb.Sequence > e.state.RootSequence:
		e.state.HopsToRoot = hb.HopsToRoot + 1
		e.state.RootSequence = hb.Sequence
		e.state.LastHeartbeatAt = e.now()
		return TopologyChanged

	default:
		return TopologyUnchanged
	}
}

// Tick performs the periodic HEARTBEAT_INTERVAL action (§4.F):
//
//   - self-root: increment RootSequence, return the heartbeat payload to
//     emit (hops 0, networkId == ownNodeId) and TopologyChanged.
//   - non-root, silent past heartbeatTimeout: downgrade to a fresh
//     one-node island and return TopologyDowngraded.
//   - non-root, still within the timeout: TopologyUnchanged, no payload.
func (e *TopologyEngine) Tick(heartbeatTimeout time.Duration) (TopologyResult, *HeartbeatPayload) {
	if e.IsRoot() {
		e.state.RootSequence++
		hb := HeartbeatPayload{
			NetworkID:  e.ownNodeID,
			Sequence:   e.state.RootSequence,
			HopsToRoot: 0,
		}
		return TopologyChanged, &hb
	}

	if e.now().Sub(e.state.LastHeartbeatAt) > heartbeatTimeout {
		e.state = TopologyState{
			NetworkID:       e.ownNodeID,
			HopsToRoot:      0,
			RootSequence:    0,
			LastHeartbeatAt: e.now(),
		}
		return TopologyDowngraded, nil
	}

	return TopologyUnchanged, nil
}
