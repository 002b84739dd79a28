package mesh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// linkSession tracks the per-link handshake and post-auth routing state
// between a raw LinkAddress and the eventual authenticated NodeID (§4.G:
// "client and server roles are per-link, not per-node"). Every frame it
// sends during the pre-auth handshake goes through opQueue — the link's
// own BLE Operation Queue (§4.E) — so a stalled peer can never block the
// Controller's mutex.
type linkSession struct {
	addr      string
	kind      TransportKind
	transport TransportStrategy

	client *ClientHandshake
	server *ServerHandshake

	authenticated bool
	nodeID        NodeID

	opQueue *OpQueue
	cancel  context.CancelFunc
}

// enqueueSend schedules a control-lane send of b on this session's queue.
func (s *linkSession) enqueueSend(b []byte) {
	s.opQueue.Enqueue(&Op{Lane: laneControl, DataType: DataTypeControl, Payload: b, Run: func(ctx context.Context) error {
		return s.transport.Send(b, DataTypeControl)
	}})
}

// enqueueDisconnect schedules a disconnect after whatever sends are
// already queued, preserving FIFO delivery order (§4.E).
func (s *linkSession) enqueueDisconnect() {
	s.opQueue.Enqueue(&Op{Lane: laneControl, Run: func(context.Context) error {
		return s.transport.Disconnect()
	}})
}

// stop cancels the session's OpQueue runner and closes the queue. Safe to
// call more than once.
func (s *linkSession) stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.opQueue != nil {
		s.opQueue.Close()
	}
}

// Controller is the Mesh Controller state machine (§4.H): the sole owner
// of topology and peer decisions, subscribed to a single Link Driver
// event stream and exposing createGroup/joinGroup/leave as its public
// control surface. Every state transition and topology update happens
// under mu (§5). The PeerRegistry does its own locking: a stalled per-peer
// queue removes its peer from the registry without taking mu.
type Controller struct {
	ownNodeID  NodeID
	log        *slog.Logger
	constants  Constants
	metrics    *Metrics
	link       LinkDriver
	audio      AudioEngine

	registry    *PeerRegistry
	topology    *TopologyEngine
	seenCache   *SeenPacketCache
	scanLimiter *ScanRateLimiter
	groups      *GroupTracker

	mu              sync.Mutex
	state           EngineState
	accessCode      string
	lastAdvertising *AdvertisingConfig
	sessions        map[string]*linkSession
	pendingDialNode map[string]NodeID
	connecting      map[string]bool // one attempt at a time per address

	rootCtx     context.Context
	stateCancel context.CancelFunc
	stateGroup  *errgroup.Group

	joinResult chan error // non-nil while a JoinGroup call is pending
}

// NewController creates a Controller in the Idle state.
func NewController(ownNodeID NodeID, link LinkDriver, audio AudioEngine, constants Constants, metrics *Metrics, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	c := &Controller{
		ownNodeID:       ownNodeID,
		log:             log,
		constants:       constants,
		metrics:         metrics,
		link:            link,
		audio:           audio,
		registry:        NewPeerRegistry(ownNodeID, constants, metrics, log),
		topology:        NewTopologyEngine(ownNodeID),
		seenCache:       NewSeenPacketCache(constants.PacketCacheTimeout),
		scanLimiter:     NewScanRateLimiter(constants.ScanStartsPerWindow, constants.ScanWindow),
		groups:          NewGroupTracker(constants.GroupAdvertisementTimeout),
		sessions:        make(map[string]*linkSession),
		pendingDialNode: make(map[string]NodeID),
		connecting:      make(map[string]bool),
		rootCtx:         context.Background(),
		state:           EngineState{Kind: StateIdle},
	}
	if audio != nil {
		audio.SetPacketSink(c.onLocalAudioFrame)
	}
	go c.dispatchLoop()
	return c
}

// State returns a snapshot of the controller's current engine state.
func (c *Controller) State() EngineState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Topology returns a snapshot of the current topology state.
func (c *Controller) Topology() TopologyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topology.State()
}

// OwnNodeID returns this node's own identity.
func (c *Controller) OwnNodeID() NodeID {
	return c.ownNodeID
}

// PeerSummary is a read-only snapshot of one registered peer, for
// external status surfaces (the control-plane daemon's GET /v1/peers).
type PeerSummary struct {
	NodeID         NodeID
	TransportKind  TransportKind
	LastHeardAgo   time.Duration
}

// Peers returns a snapshot of every currently registered peer.
func (c *Controller) Peers() []PeerSummary {
	ids := c.registry.NodeIDs()
	now := time.Now()
	summaries := make([]PeerSummary, 0, len(ids))
	for _, id := range ids {
		peer, ok := c.registry.Get(id)
		if !ok {
			continue
		}
		kind := TransportKind(0)
		if t := peer.Transport(); t != nil {
			kind = t.Kind()
		}
		summaries = append(summaries, PeerSummary{
			NodeID:        id,
			TransportKind: kind,
			LastHeardAgo:  now.Sub(peer.LastHeardAt()),
		})
	}
	return summaries
}

// ---------------------------------------------------------------------
// Public control surface (§4.H, §4.I)
// ---------------------------------------------------------------------

// StartGroupScan transitions Idle -> Discovering.
func (c *Controller) StartGroupScan() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Kind != StateIdle {
		return fmt.Errorf("%w: StartGroupScan requires Idle, have %s", ErrInvalidState, c.state.Kind)
	}
	c.enterDiscoveringLocked()
	return nil
}

// StopGroupScan transitions Discovering -> Idle.
func (c *Controller) StopGroupScan() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Kind != StateDiscovering {
		return fmt.Errorf("%w: StopGroupScan requires Discovering, have %s", ErrInvalidState, c.state.Kind)
	}
	c.enterIdleLocked()
	return nil
}

// JoinGroup transitions Discovering -> Joining(groupName) and blocks until
// the first successful authentication (-> RadioActive) or
// GROUP_JOIN_TIMEOUT elapses (-> ErrJoinTimedOut, back to Idle).
func (c *Controller) JoinGroup(groupName, accessCode string) error {
	if err := c.link.ValidateCapabilities(); err != nil {
		return fmt.Errorf("join group: %w", err)
	}
	c.mu.Lock()
	if c.state.Kind != StateDiscovering {
		c.mu.Unlock()
		return fmt.Errorf("%w: JoinGroup requires Discovering, have %s", ErrInvalidState, c.state.Kind)
	}
	result := make(chan error, 1)
	c.joinResult = result
	c.accessCode = accessCode
	c.enterJoiningLocked(groupName)
	c.mu.Unlock()

	return <-result
}

// CreateGroup transitions Idle -> RadioActive(groupName, 0) directly,
// skipping Joining (§4.I: "createGroup skips Joining").
func (c *Controller) CreateGroup(groupName, accessCode string) error {
	if err := c.link.ValidateCapabilities(); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Kind != StateIdle {
		return fmt.Errorf("%w: CreateGroup requires Idle, have %s", ErrInvalidState, c.state.Kind)
	}
	c.accessCode = accessCode
	c.enterRadioActiveLocked(groupName)
	return nil
}

// Leave tears down any active state and returns to Idle (terminal: none,
// Idle is re-entered via leave, §4.I).
func (c *Controller) Leave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enterIdleLocked()
}

// Broadcast sends locally originated audio (from the mic) to every peer,
// pre-marking the seen cache so it is never reflected back (§4.H).
func (c *Controller) Broadcast(b []byte, dt DataType) {
	c.seenCache.Mark(b)
	c.registry.Broadcast(b, dt, nil)
}

// ---------------------------------------------------------------------
// State transitions
// ---------------------------------------------------------------------

// teardownLocked cancels and joins every task from the previous state and
// tears down its resources synchronously (§4.H, §5). Caller holds mu.
func (c *Controller) teardownLocked() {
	if c.stateCancel != nil {
		c.stateCancel()
		eg := c.stateGroup
		c.mu.Unlock()
		_ = eg.Wait()
		c.mu.Lock()
		c.stateCancel = nil
		c.stateGroup = nil
	}
	c.lastAdvertising = nil // invalidated on every transition (§4.H)
}

func (c *Controller) enterIdleLocked() {
	c.teardownLocked()
	_ = c.link.StopScanning()
	_ = c.link.StopAdvertising()
	c.registry.DisconnectAll()
	for addr, sess := range c.sessions {
		sess.stop()
		delete(c.sessions, addr)
	}
	c.groups.Reset()
	if c.joinResult != nil {
		select {
		case c.joinResult <- ErrJoinTimedOut:
		default:
		}
		c.joinResult = nil
	}
	c.state = EngineState{Kind: StateIdle}
	c.metrics.StateTransitionsTotal.WithLabelValues(c.state.Kind.String()).Inc()
}

func (c *Controller) enterDiscoveringLocked() {
	c.teardownLocked()
	c.startScanLocked()
	c.state = EngineState{Kind: StateDiscovering}
	c.metrics.StateTransitionsTotal.WithLabelValues(c.state.Kind.String()).Inc()

	ctx, cancel := context.WithCancel(c.rootCtx)
	eg, egCtx := errgroup.WithContext(ctx)
	c.stateCancel = cancel
	c.stateGroup = eg
	c.runTask(func() { c.groupSweepLoop(egCtx) })
}

func (c *Controller) enterJoiningLocked(groupName string) {
	c.teardownLocked()
	c.startScanLocked()
	c.state = EngineState{Kind: StateJoining, GroupName: groupName}
	c.metrics.StateTransitionsTotal.WithLabelValues(c.state.Kind.String()).Inc()

	ctx, cancel := context.WithTimeout(c.rootCtx, c.constants.GroupJoinTimeout)
	eg, egCtx := errgroup.WithContext(ctx)
	c.stateCancel = cancel
	c.stateGroup = eg
	c.runTask(func() {
		<-egCtx.Done()
		if ctx.Err() != context.DeadlineExceeded {
			return
		}
		// Spawned outside the task group: enterIdleLocked tears down (and
		// joins) this very group, which would deadlock if awaited from
		// one of the group's own goroutines.
		go func() {
			c.mu.Lock()
			if c.state.Kind == StateJoining {
				c.log.Warn("mesh: group join timed out", "group", groupName)
				c.enterIdleLocked()
			}
			c.mu.Unlock()
		}()
	})
}

func (c *Controller) enterRadioActiveLocked(groupName string) {
	c.teardownLocked()
	c.topology = NewTopologyEngine(c.ownNodeID)
	_ = c.link.StartScanning() // left on to receive heartbeats and merge (§4.H)
	c.state = EngineState{Kind: StateRadioActive, GroupName: groupName, PeerCount: 0}
	c.metrics.StateTransitionsTotal.WithLabelValues(c.state.Kind.String()).Inc()
	c.refreshAdvertisingLocked()

	ctx, cancel := context.WithCancel(c.rootCtx)
	eg, egCtx := errgroup.WithContext(ctx)
	c.stateCancel = cancel
	c.stateGroup = eg
	c.runTask(func() { c.heartbeatLoop(egCtx) })
	c.runTask(func() { c.livenessLoop(egCtx) })
	c.runTask(func() { c.seenCacheSweepLoop(egCtx) })

	if c.joinResult != nil {
		select {
		case c.joinResult <- nil:
		default:
		}
		c.joinResult = nil
	}
}

// runTask launches fn in the current state's task group, so
// teardownLocked can join it before the next state starts (§4.H, §5).
func (c *Controller) runTask(fn func()) {
	c.stateGroup.Go(func() error {
		fn()
		return nil
	})
}

func (c *Controller) startScanLocked() {
	tok, ok := c.scanLimiter.TryAcquire()
	if !ok {
		c.metrics.ScanRateLimitedTotal.Inc()
		c.log.Warn("mesh: scan rate limited, deferring scan start")
		return
	}
	if err := c.link.StartScanning(); err != nil {
		c.scanLimiter.Rollback(tok)
		c.log.Error("mesh: start scanning failed", "error", err)
	}
}

// ---------------------------------------------------------------------
// Background loops
// ---------------------------------------------------------------------

func (c *Controller) groupSweepLoop(ctx context.Context) {
	t := time.NewTicker(c.constants.CleanupPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.groups.Sweep()
		}
	}
}

func (c *Controller) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(c.constants.HeartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.onHeartbeatTick()
		}
	}
}

func (c *Controller) onHeartbeatTick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, hb := c.topology.Tick(c.constants.HeartbeatTimeout)
	c.metrics.TopologyEventsTotal.WithLabelValues(result.String()).Inc()
	switch result {
	case TopologyChanged:
		env := EncodeEnvelope(MsgHeartbeat, EncodeHeartbeat(hb.NetworkID, hb.Sequence, hb.HopsToRoot))
		c.seenCache.Mark(env) // pre-mark locally originated heartbeats (§4.H)
		c.registry.Broadcast(env, DataTypeControl, nil)
		c.refreshAdvertisingLocked()
	case TopologyDowngraded:
		c.refreshAdvertisingLocked()
	}
}

func (c *Controller) livenessLoop(ctx context.Context) {
	t := time.NewTicker(c.constants.CleanupPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.sweepLiveness()
		}
	}
}

func (c *Controller) sweepLiveness() {
	control, audio := c.registry.QueueDepths()
	c.metrics.ControlQueueDepth.Set(float64(control))
	c.metrics.AudioQueueDepth.Set(float64(audio))

	stale := c.registry.StalePeers(time.Now(), c.constants.PeerConnectTimeout)
	if len(stale) == 0 {
		return
	}
	c.mu.Lock()
	for _, id := range stale {
		c.log.Info("mesh: peer liveness timeout, disconnecting", "node", id)
		_ = c.registry.Disconnect(id)
	}
	c.updatePeerCountLocked()
	c.refreshAdvertisingLocked()
	c.mu.Unlock()
}

func (c *Controller) seenCacheSweepLoop(ctx context.Context) {
	t := time.NewTicker(c.constants.PacketCacheTimeout)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.seenCache.Sweep()
		}
	}
}

// ---------------------------------------------------------------------
// Advertising refresh (§4.H)
// ---------------------------------------------------------------------

// refreshAdvertisingLocked rebuilds the AdvertisingConfig and pushes it to
// the Link Driver only if it differs from the last one pushed (§8
// invariant 6). Caller holds mu.
func (c *Controller) refreshAdvertisingLocked() {
	if c.state.Kind != StateRadioActive && c.state.Kind != StateJoining {
		return
	}
	topo := c.topology.State()
	cfg := AdvertisingConfig{
		GroupName:   c.state.GroupName,
		OwnNodeID:   c.ownNodeID,
		NetworkID:   topo.NetworkID,
		HopsToRoot:  topo.HopsToRoot,
		IsAvailable: c.registry.Count() < c.constants.MaxPeers,
	}
	if c.lastAdvertising != nil && *c.lastAdvertising == cfg {
		return
	}
	if err := c.link.StartAdvertising(cfg); err != nil {
		c.log.Error("mesh: start advertising failed", "error", err)
		return
	}
	c.lastAdvertising = &cfg
}

func (c *Controller) updatePeerCountLocked() {
	n := c.registry.Count()
	c.state.PeerCount = n
	c.metrics.PeerCount.Set(float64(n))
	c.metrics.HopsToRoot.Set(float64(c.topology.State().HopsToRoot))
}

// ---------------------------------------------------------------------
// Link Driver event dispatch
// ---------------------------------------------------------------------

func (c *Controller) dispatchLoop() {
	for ev := range c.link.Events() {
		c.dispatch(ev)
	}
}

func (c *Controller) dispatch(ev LinkEvent) {
	switch ev.Kind {
	case EventPeerDiscovered:
		c.onPeerDiscovered(ev.Discovered)
	case EventPeerConnected:
		c.onPeerConnected(ev.LinkAddress, ev.NodeID)
	case EventPeerDisconnected:
		c.onPeerDisconnected(ev.LinkAddress, ev.NodeID)
	case EventDataReceived:
		c.onDataReceived(ev.LinkAddress, ev.Data, ev.DataType)
	}
}

func (c *Controller) onPeerDiscovered(d DiscoveredPeer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state.Kind {
	case StateDiscovering:
		c.groups.Observe(d)

	case StateJoining:
		if d.GroupName != c.state.GroupName {
			return
		}
		if _, known := c.registry.Get(d.NodeID); known {
			return
		}
		c.tryConnectLocked(d)

	case StateRadioActive:
		if d.GroupName != c.state.GroupName {
			return
		}
		if _, known := c.registry.Get(d.NodeID); known {
			return
		}
		if c.shouldConnectLocked(d) {
			c.tryConnectLocked(d)
		}
	}
}

// shouldConnectLocked implements the RadioActive connect policy (§4.H).
func (c *Controller) shouldConnectLocked(d DiscoveredPeer) bool {
	topo := c.topology.State()
	count := c.registry.Count()

	if d.NetworkID > topo.NetworkID {
		return true // island-merge: always preferred
	}
	if count < c.constants.TargetPeers {
		return d.IsAvailable || d.NetworkID < topo.NetworkID
	}
	if count < c.constants.MaxPeers {
		return d.NetworkID < topo.NetworkID
	}
	return false
}

func (c *Controller) tryConnectLocked(d DiscoveredPeer) {
	if c.connecting[d.LinkAddress] {
		return // one attempt at a time per address
	}
	c.connecting[d.LinkAddress] = true
	c.pendingDialNode[d.LinkAddress] = d.NodeID

	ctx, cancel := context.WithTimeout(c.rootCtx, c.constants.PeerConnectTimeout)
	addr, nodeID := d.LinkAddress, d.NodeID
	go func() {
		defer cancel()
		err := c.link.ConnectTo(ctx, addr, nodeID)
		if err != nil {
			c.log.Info("mesh: connect attempt failed", "node", nodeID, "error", err)
			c.mu.Lock()
			delete(c.connecting, addr)
			delete(c.pendingDialNode, addr)
			c.mu.Unlock()
		}
	}()
}

func (c *Controller) onPeerConnected(addr string, nodeID NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	transport, ok := c.link.TransportForAddress(addr)
	if !ok {
		c.log.Error("mesh: peer connected but no transport available", "addr", addr)
		return
	}

	sess := &linkSession{addr: addr, kind: transport.Kind(), transport: transport}
	c.sessions[addr] = sess

	sessAddr := addr
	queue := NewOpQueue(c.constants.MaxAudioQueueCapacity, c.constants.AudioStarvationThreshold, c.constants.BLEOperationTimeout, func() {
		c.log.Error("mesh: handshake link operation stalled, disconnecting", "addr", sessAddr, "error", ErrOperationStalled)
		_ = transport.Disconnect()
	}, c.metrics, c.log)
	ctx, cancel := context.WithCancel(c.rootCtx)
	sess.opQueue = queue
	sess.cancel = cancel
	go queue.Run(ctx)

	if sess.kind == TransportOutgoing {
		if known, ok := c.pendingDialNode[addr]; ok {
			nodeID = known
		}
		sess.client = NewClientHandshake(c.accessCode, c.ownNodeID)
		sess.nodeID = nodeID
		sess.enqueueSend(sess.client.Hello())
	} else {
		sess.server = NewServerHandshake(c.accessCode)
	}
}

func (c *Controller) onPeerDisconnected(addr string, nodeID NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sess, ok := c.sessions[addr]; ok {
		sess.stop()
		delete(c.connecting, sess.addr)
		delete(c.pendingDialNode, sess.addr)
		delete(c.sessions, addr)
		if sess.authenticated {
			c.registry.UnregisterByAddress(sess.nodeID, addr)
			c.updatePeerCountLocked()
			c.refreshAdvertisingLocked()
		}
		return
	}
	delete(c.connecting, addr)
	delete(c.pendingDialNode, addr)
	if nodeID != 0 {
		c.registry.UnregisterByAddress(nodeID, addr)
		c.updatePeerCountLocked()
		c.refreshAdvertisingLocked()
	}
}

func (c *Controller) onDataReceived(addr string, data []byte, dt DataType) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[addr]
	if !ok {
		return // unknown link, drop
	}

	if dt == DataTypeAudio {
		if sess.authenticated {
			c.handleInboundAudioLocked(sess.nodeID, data)
		}
		return
	}

	env, err := DecodeEnvelope(data)
	if err != nil {
		return // MalformedFrame: drop without disconnecting (§4.A, §7)
	}

	if !sess.authenticated {
		c.stepHandshakeLocked(sess, env)
		return
	}

	if peer, ok := c.registry.Get(sess.nodeID); ok {
		peer.Touch(time.Now())
	}

	switch env.Type {
	case MsgHeartbeat:
		c.handleInboundHeartbeatLocked(sess.nodeID, env.Payload)
	case MsgPing:
		// Liveness-only: the touch above already refreshed lastHeardAt.
	default:
		c.log.Debug("mesh: dropping frame with unexpected type post-auth", "type", env.Type)
	}
}

func (c *Controller) stepHandshakeLocked(sess *linkSession, env ControlEnvelope) {
	switch {
	case sess.client != nil:
		switch env.Type {
		case MsgAuthChallenge:
			resp, err := sess.client.OnChallenge(env.Payload)
			if err != nil {
				return
			}
			sess.enqueueSend(resp)

		case MsgAuthResult:
			ok, err := sess.client.OnResult(env.Payload)
			if err != nil {
				return
			}
			c.metrics.HandshakeResultsTotal.WithLabelValues("client", resultLabel(ok)).Inc()
			if ok {
				sess.authenticated = true
				c.completeAuthenticationLocked(sess)
			} else {
				sess.enqueueDisconnect()
			}
		}

	case sess.server != nil:
		switch env.Type {
		case MsgClientHello:
			challenge, err := sess.server.OnHello()
			if err != nil {
				return
			}
			sess.enqueueSend(challenge)

		case MsgAuthResponse:
			nodeID, resultEnv, err := sess.server.OnResponse(env.Payload)
			if err != nil {
				return
			}
			sess.enqueueSend(resultEnv)
			authOK := sess.server.State() == HandshakeAuthenticated
			c.metrics.HandshakeResultsTotal.WithLabelValues("server", resultLabel(authOK)).Inc()
			if authOK {
				sess.nodeID = nodeID
				sess.authenticated = true
				c.completeAuthenticationLocked(sess)
			} else {
				// AUTH_RESULT(0x00) is enqueued ahead of this disconnect on
				// the same per-link queue, so it is sent first (§4.E). The
				// session stays in c.sessions until the disconnect event (or
				// Leave) stops its queue.
				sess.enqueueDisconnect()
			}
		}
	}
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (c *Controller) completeAuthenticationLocked(sess *linkSession) {
	peer, installed := c.registry.Register(sess.nodeID, sess.transport)
	delete(c.connecting, sess.addr)
	delete(c.pendingDialNode, sess.addr)
	if !installed {
		// Lost the simultaneous-connection tie-break; our transport was
		// disposed by Register. This session's link is dead.
		sess.stop()
		delete(c.sessions, sess.addr)
		return
	}
	peer.Touch(time.Now())
	c.updatePeerCountLocked()

	if c.state.Kind == StateJoining {
		c.enterRadioActiveLocked(c.state.GroupName)
	} else {
		c.refreshAdvertisingLocked()
	}
}

func (c *Controller) handleInboundHeartbeatLocked(fromNode NodeID, payload []byte) {
	hb, err := DecodeHeartbeat(payload)
	if err != nil {
		return
	}
	env := EncodeEnvelope(MsgHeartbeat, payload)
	if !c.seenCache.Mark(env) {
		c.metrics.FloodDroppedTotal.Inc()
		return
	}

	result := c.topology.OnHeartbeat(hb)
	c.metrics.TopologyEventsTotal.WithLabelValues(result.String()).Inc()
	if result != TopologyChanged {
		return
	}

	topo := c.topology.State()
	relayed := EncodeEnvelope(MsgHeartbeat, EncodeHeartbeat(topo.NetworkID, topo.RootSequence, topo.HopsToRoot))
	c.seenCache.Mark(relayed)
	exclude := fromNode
	c.registry.Broadcast(relayed, DataTypeControl, &exclude)
	c.refreshAdvertisingLocked()
}

func (c *Controller) handleInboundAudioLocked(fromNode NodeID, data []byte) {
	if !c.seenCache.Mark(data) {
		c.metrics.FloodDroppedTotal.Inc()
		return
	}
	if c.audio != nil {
		c.audio.PushIncomingPacket(data)
	}
	exclude := fromNode
	c.registry.Broadcast(data, DataTypeAudio, &exclude)
}

// onLocalAudioFrame is wired as the AudioEngine's packet sink:
// packetSink -> broadcast(., Audio) (§6).
func (c *Controller) onLocalAudioFrame(b []byte) {
	c.Broadcast(b, DataTypeAudio)
}
