package mesh

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// PeerConnection owns at most one TransportStrategy for a given remote
// node at any instant (§3, §8 invariant 1). Every write to its transport
// goes through opQueue, the per-link BLE Operation Queue (§4.E), so a
// stalled peer can never block a caller holding the Controller's mutex.
type PeerConnection struct {
	mu sync.Mutex

	nodeID    NodeID
	transport TransportStrategy
	lastHeard time.Time

	opQueue   *OpQueue
	cancelOpQ context.CancelFunc
}

// NodeID returns the remote node identifier.
func (p *PeerConnection) NodeID() NodeID {
	return p.nodeID
}

// Transport returns the currently installed transport, or nil.
func (p *PeerConnection) Transport() TransportStrategy {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transport
}

// LastHeardAt returns the last time any frame was received from this peer.
func (p *PeerConnection) LastHeardAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastHeard
}

// Touch updates lastHeardAt to now; called on any received frame
// (control or audio), per §4.H liveness rules.
func (p *PeerConnection) Touch(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastHeard = now
}

// PeerRegistry maps nodeId -> PeerConnection, enforcing one logical link
// per remote node over the two asymmetric transport roles (§4.D).
type PeerRegistry struct {
	ownNodeID NodeID
	log       *slog.Logger
	metrics   *Metrics

	audioCapacity   int
	starvationLimit int
	opTimeout       time.Duration

	mu    sync.RWMutex
	peers map[NodeID]*PeerConnection
}

// NewPeerRegistry creates a registry for a node identified by ownNodeID.
// ownNodeID is used only for the simultaneous-connection tie-break.
// constants supplies the per-link BLE Operation Queue's sizing (§4.E),
// used for every transport this registry installs.
func NewPeerRegistry(ownNodeID NodeID, constants Constants, metrics *Metrics, log *slog.Logger) *PeerRegistry {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &PeerRegistry{
		ownNodeID:       ownNodeID,
		log:             log,
		metrics:         metrics,
		audioCapacity:   constants.MaxAudioQueueCapacity,
		starvationLimit: constants.AudioStarvationThreshold,
		opTimeout:       constants.BLEOperationTimeout,
		peers:           make(map[NodeID]*PeerConnection),
	}
}

// startOpQueueLocked constructs and starts a fresh OpQueue bound to
// strategy, replacing whatever queue peer previously held. Caller holds
// peer.mu.
func (r *PeerRegistry) startOpQueueLocked(peer *PeerConnection, strategy TransportStrategy) {
	r.stopOpQueueLocked(peer)

	nodeID := peer.nodeID
	q := NewOpQueue(r.audioCapacity, r.starvationLimit, r.opTimeout, func() {
		r.log.Error("mesh: link operation stalled, disconnecting", "node", nodeID, "error", ErrOperationStalled)
		_ = r.Disconnect(nodeID)
	}, r.metrics, r.log)

	ctx, cancel := context.WithCancel(context.Background())
	peer.opQueue = q
	peer.cancelOpQ = cancel
	go q.Run(ctx)
}

// stopOpQueueLocked cancels and closes peer's current OpQueue, if any.
// Caller holds peer.mu.
func (r *PeerRegistry) stopOpQueueLocked(peer *PeerConnection) {
	if peer.cancelOpQ != nil {
		peer.cancelOpQ()
		peer.cancelOpQ = nil
	}
	if peer.opQueue != nil {
		peer.opQueue.Close()
		peer.opQueue = nil
	}
}

// Register installs newStrategy as the transport for nodeID, resolving
// any collision with an existing transport per §4.D:
//
//   - no current transport: install.
//   - current address != new address: assume MAC rotation, replace.
//   - same kind, same address: retry, replace.
//   - different kind, same address (simultaneous-connection collision):
//     keep the link whose dialing side's NodeId is greater than the
//     accepting side's; dispose the other.
//
// Returns the PeerConnection and whether newStrategy ended up installed
// (false means newStrategy lost the tie-break and was disposed).
func (r *PeerRegistry) Register(nodeID NodeID, newStrategy TransportStrategy) (*PeerConnection, bool) {
	r.mu.Lock()
	peer, exists := r.peers[nodeID]
	if !exists {
		peer = &PeerConnection{nodeID: nodeID}
		r.peers[nodeID] = peer
	}
	r.mu.Unlock()

	peer.mu.Lock()
	defer peer.mu.Unlock()

	current := peer.transport
	if current == nil {
		peer.transport = newStrategy
		peer.lastHeard = time.Now()
		r.startOpQueueLocked(peer, newStrategy)
		return peer, true
	}

	if current.LinkAddress() != newStrategy.LinkAddress() {
		r.log.Info("mesh: peer link address changed, replacing transport", "node", nodeID)
		_ = current.Disconnect()
		peer.transport = newStrategy
		peer.lastHeard = time.Now()
		r.startOpQueueLocked(peer, newStrategy)
		return peer, true
	}

	if current.Kind() == newStrategy.Kind() {
		r.log.Info("mesh: peer reconnected on same role, replacing transport", "node", nodeID)
		_ = current.Disconnect()
		peer.transport = newStrategy
		peer.lastHeard = time.Now()
		r.startOpQueueLocked(peer, newStrategy)
		return peer, true
	}

	// Simultaneous-connection collision: same address, opposite kind.
	keepNew := r.winsCollision(nodeID, newStrategy.Kind())
	if keepNew {
		r.log.Info("mesh: simultaneous-connection collision, keeping new link", "node", nodeID, "kind", newStrategy.Kind())
		_ = current.Disconnect()
		peer.transport = newStrategy
		peer.lastHeard = time.Now()
		r.startOpQueueLocked(peer, newStrategy)
		return peer, true
	}

	r.log.Info("mesh: simultaneous-connection collision, keeping existing link", "node", nodeID, "kind", current.Kind())
	_ = newStrategy.Disconnect()
	return peer, false
}

// winsCollision implements the canonical tie-break: if the candidate link
// is Outgoing, it wins iff ownId > remoteId; if Incoming, it wins iff
// remoteId > ownId. Equivalently: the link whose dialer has the greater
// NodeId wins (§4.D, §8 invariant 5).
func (r *PeerRegistry) winsCollision(remoteID NodeID, candidateKind TransportKind) bool {
	switch candidateKind {
	case TransportOutgoing:
		return r.ownNodeID > remoteID
	case TransportIncoming:
		return remoteID > r.ownNodeID
	default:
		return false
	}
}

// Get returns the PeerConnection for nodeID, if any.
func (r *PeerRegistry) Get(nodeID NodeID) (*PeerConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[nodeID]
	return p, ok
}

// Count returns the number of registered peers.
func (r *PeerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// NodeIDs returns a snapshot of every currently registered node id.
func (r *PeerRegistry) NodeIDs() []NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]NodeID, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	return ids
}

// Disconnect tears down and removes nodeID's connection, if present.
func (r *PeerRegistry) Disconnect(nodeID NodeID) error {
	r.mu.Lock()
	peer, ok := r.peers[nodeID]
	if ok {
		delete(r.peers, nodeID)
	}
	r.mu.Unlock()

	if !ok {
		return ErrUnknownPeer
	}
	peer.mu.Lock()
	t := peer.transport
	peer.transport = nil
	r.stopOpQueueLocked(peer)
	peer.mu.Unlock()
	if t != nil {
		return t.Disconnect()
	}
	return nil
}

// DisconnectAll tears down and removes every registered peer.
func (r *PeerRegistry) DisconnectAll() {
	r.mu.Lock()
	peers := r.peers
	r.peers = make(map[NodeID]*PeerConnection)
	r.mu.Unlock()

	for _, peer := range peers {
		peer.mu.Lock()
		t := peer.transport
		peer.transport = nil
		r.stopOpQueueLocked(peer)
		peer.mu.Unlock()
		if t != nil {
			_ = t.Disconnect()
		}
	}
}

// UnregisterByAddress removes nodeID's connection only if its *current*
// transport's address equals addr — this prevents a stale disconnect
// event (from a transport that was just replaced by Register) from
// evicting the live replacement (§4.D).
func (r *PeerRegistry) UnregisterByAddress(nodeID NodeID, addr string) bool {
	r.mu.Lock()
	peer, ok := r.peers[nodeID]
	r.mu.Unlock()
	if !ok {
		return false
	}

	peer.mu.Lock()
	defer peer.mu.Unlock()
	if peer.transport == nil || peer.transport.LinkAddress() != addr {
		return false
	}
	peer.transport = nil
	r.stopOpQueueLocked(peer)

	r.mu.Lock()
	if cur, ok := r.peers[nodeID]; ok && cur == peer {
		delete(r.peers, nodeID)
	}
	r.mu.Unlock()
	return true
}

// opLane maps a wire DataType onto its BLE Operation Queue lane (§4.E):
// audio frames are bounded/head-droppable, everything else is control.
func opLane(dt DataType) lane {
	if dt == DataTypeAudio {
		return laneAudio
	}
	return laneControl
}

// enqueueSend schedules b onto peer's per-link OpQueue instead of calling
// its transport directly, so a stalled link can never block the caller on
// a send (§4.E).
func (r *PeerRegistry) enqueueSend(peer *PeerConnection, b []byte, dt DataType) error {
	peer.mu.Lock()
	t := peer.transport
	q := peer.opQueue
	peer.mu.Unlock()
	if t == nil || q == nil {
		return ErrUnknownPeer
	}
	q.Enqueue(&Op{Lane: opLane(dt), DataType: dt, Payload: b, Run: func(ctx context.Context) error {
		return t.Send(b, dt)
	}})
	return nil
}

// Send writes b of the given DataType to nodeID's current transport.
func (r *PeerRegistry) Send(nodeID NodeID, b []byte, dt DataType) error {
	peer, ok := r.Get(nodeID)
	if !ok {
		return ErrUnknownPeer
	}
	return r.enqueueSend(peer, b, dt)
}

// Broadcast writes b of the given DataType to every registered peer
// except the one named by exclude, if non-nil (§4.H flood-and-relay).
func (r *PeerRegistry) Broadcast(b []byte, dt DataType, exclude *NodeID) {
	r.mu.RLock()
	peers := make([]*PeerConnection, 0, len(r.peers))
	for id, p := range r.peers {
		if exclude != nil && id == *exclude {
			continue
		}
		peers = append(peers, p)
	}
	r.mu.RUnlock()

	for _, p := range peers {
		if err := r.enqueueSend(p, b, dt); err != nil {
			r.log.Warn("mesh: broadcast enqueue failed", "node", p.NodeID(), "error", err)
		}
	}
}

// QueueDepths sums the control and audio lane depths across every
// registered peer's OpQueue, for the queue-depth gauges (§4.E metrics).
func (r *PeerRegistry) QueueDepths() (control, audio int) {
	r.mu.RLock()
	peers := make([]*PeerConnection, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.mu.RUnlock()

	for _, p := range peers {
		p.mu.Lock()
		q := p.opQueue
		p.mu.Unlock()
		if q == nil {
			continue
		}
		c, a := q.Depth()
		control += c
		audio += a
	}
	return control, audio
}

// StalePeers returns the node ids whose lastHeardAt exceeds timeout as of
// now — used by the liveness sweep (§4.H).
func (r *PeerRegistry) StalePeers(now time.Time, timeout time.Duration) []NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []NodeID
	for id, p := range r.peers {
		if now.Sub(p.LastHeardAt()) > timeout {
			stale = append(stale, id)
		}
	}
	return stale
}
