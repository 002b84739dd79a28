package mesh

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeLinkDriver is a minimal in-memory LinkDriver double: StartScanning/
// StartAdvertising are recorded, not actually physical.
// Tests drive the event stream directly and register transports before
// emitting the matching Connected/DataReceived event.
type fakeLinkDriver struct {
	events chan LinkEvent

	mu          sync.Mutex
	transports  map[string]TransportStrategy
	advertising []AdvertisingConfig
	scanning    bool
}

func newFakeLinkDriver() *fakeLinkDriver {
	return &fakeLinkDriver{
		events:     make(chan LinkEvent, 16),
		transports: make(map[string]TransportStrategy),
	}
}

func (f *fakeLinkDriver) ValidateCapabilities() error                       { return nil }
func (f *fakeLinkDriver) SetCredentials(accessCode string, ownNodeID NodeID) {}

func (f *fakeLinkDriver) StartScanning() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanning = true
	return nil
}

func (f *fakeLinkDriver) StopScanning() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanning = false
	return nil
}

func (f *fakeLinkDriver) StartAdvertising(cfg AdvertisingConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advertising = append(f.advertising, cfg)
	return nil
}

func (f *fakeLinkDriver) StopAdvertising() error { return nil }

func (f *fakeLinkDriver) ConnectTo(ctx context.Context, linkAddress string, nodeID NodeID) error {
	return nil
}

func (f *fakeLinkDriver) DisconnectNode(nodeID NodeID) error { return nil }
func (f *fakeLinkDriver) DisconnectAll() error                { return nil }
func (f *fakeLinkDriver) Broadcast(b []byte, dt DataType) error { return nil }

func (f *fakeLinkDriver) TransportForAddress(addr string) (TransportStrategy, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tr, ok := f.transports[addr]
	return tr, ok
}

func (f *fakeLinkDriver) Events() <-chan LinkEvent { return f.events }

func (f *fakeLinkDriver) Destroy() error {
	close(f.events)
	return nil
}

func (f *fakeLinkDriver) registerTransport(addr string, tr TransportStrategy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transports[addr] = tr
}

func (f *fakeLinkDriver) lastAdvertised() (AdvertisingConfig, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.advertising) == 0 {
		return AdvertisingConfig{}, false
	}
	return f.advertising[len(f.advertising)-1], true
}

func pollUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s", timeout)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestControllerCreateGroupEntersRadioActiveAndAdvertises(t *testing.T) {
	driver := newFakeLinkDriver()
	c := NewController(1, driver, nil, DefaultConstants(), nil, nil)
	defer c.Leave()
	defer driver.Destroy()

	if err := c.CreateGroup("my-group", "secret"); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if got := c.State(); got.Kind != StateRadioActive || got.GroupName != "my-group" {
		t.Fatalf("state = %+v, want RadioActive(my-group)", got)
	}

	cfg, ok := driver.lastAdvertised()
	if !ok {
		t.Fatalf("expected an advertising config to have been pushed")
	}
	if cfg.GroupName != "my-group" || cfg.OwnNodeID != 1 || cfg.NetworkID != 1 {
		t.Fatalf("unexpected advertising config: %+v", cfg)
	}
}

func TestControllerStartStopGroupScan(t *testing.T) {
	driver := newFakeLinkDriver()
	c := NewController(1, driver, nil, DefaultConstants(), nil, nil)
	defer c.Leave()
	defer driver.Destroy()

	if err := c.StartGroupScan(); err != nil {
		t.Fatalf("StartGroupScan: %v", err)
	}
	if c.State().Kind != StateDiscovering {
		t.Fatalf("state = %v, want Discovering", c.State().Kind)
	}
	if err := c.StopGroupScan(); err != nil {
		t.Fatalf("StopGroupScan: %v", err)
	}
	if c.State().Kind != StateIdle {
		t.Fatalf("state = %v, want Idle", c.State().Kind)
	}
}

func TestControllerInvalidTransitionIsRejected(t *testing.T) {
	driver := newFakeLinkDriver()
	c := NewController(1, driver, nil, DefaultConstants(), nil, nil)
	defer c.Leave()
	defer driver.Destroy()

	if err := c.StopGroupScan(); err == nil {
		t.Fatalf("StopGroupScan from Idle should be rejected")
	}
}

// TestControllerInboundConnectionAuthenticates drives a full server-side
// handshake for an inbound (Incoming) link and checks the peer lands in
// the registry once authenticated.
func TestControllerInboundConnectionAuthenticates(t *testing.T) {
	const accessCode = "shared-secret"
	const remoteNodeID = NodeID(999)

	driver := newFakeLinkDriver()
	c := NewController(500, driver, nil, DefaultConstants(), nil, nil)
	defer c.Leave()
	defer driver.Destroy()

	if err := c.CreateGroup("group-x", accessCode); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	tr := &fakeTransport{kind: TransportIncoming, addr: "peer-addr"}
	driver.registerTransport("peer-addr", tr)
	driver.events <- LinkEvent{Kind: EventPeerConnected, LinkAddress: "peer-addr"}

	client := NewClientHandshake(accessCode, remoteNodeID)
	driver.events <- LinkEvent{
		Kind: EventDataReceived, LinkAddress: "peer-addr",
		Data: client.Hello(), DataType: DataTypeControl,
	}

	pollUntil(t, time.Second, func() bool { return tr.sentCount() >= 1 })
	challengeEnv, err := DecodeEnvelope(tr.sentAt(0))
	if err != nil || challengeEnv.Type != MsgAuthChallenge {
		t.Fatalf("expected AUTH_CHALLENGE, got %+v, err=%v", challengeEnv, err)
	}
	response, err := client.OnChallenge(challengeEnv.Payload)
	if err != nil {
		t.Fatalf("OnChallenge: %v", err)
	}
	driver.events <- LinkEvent{
		Kind: EventDataReceived, LinkAddress: "peer-addr",
		Data: response, DataType: DataTypeControl,
	}

	pollUntil(t, time.Second, func() bool { return tr.sentCount() >= 2 })
	resultEnv, err := DecodeEnvelope(tr.sentAt(1))
	if err != nil || resultEnv.Type != MsgAuthResult {
		t.Fatalf("expected AUTH_RESULT, got %+v, err=%v", resultEnv, err)
	}
	ok, err := client.OnResult(resultEnv.Payload)
	if err != nil || !ok {
		t.Fatalf("client authentication should have succeeded: ok=%v err=%v", ok, err)
	}

	pollUntil(t, time.Second, func() bool {
		_, registered := c.registry.Get(remoteNodeID)
		return registered
	})
	if got := c.State().PeerCount; got != 1 {
		t.Fatalf("PeerCount = %d, want 1", got)
	}
}

func TestControllerWrongAccessCodeIsNotRegistered(t *testing.T) {
	const remoteNodeID = NodeID(7)

	driver := newFakeLinkDriver()
	c := NewController(1, driver, nil, DefaultConstants(), nil, nil)
	defer c.Leave()
	defer driver.Destroy()

	if err := c.CreateGroup("group-x", "right-code"); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	tr := &fakeTransport{kind: TransportIncoming, addr: "peer-addr"}
	driver.registerTransport("peer-addr", tr)
	driver.events <- LinkEvent{Kind: EventPeerConnected, LinkAddress: "peer-addr"}

	client := NewClientHandshake("wrong-code", remoteNodeID)
	driver.events <- LinkEvent{
		Kind: EventDataReceived, LinkAddress: "peer-addr",
		Data: client.Hello(), DataType: DataTypeControl,
	}
	pollUntil(t, time.Second, func() bool { return tr.sentCount() >= 1 })
	challengeEnv, _ := DecodeEnvelope(tr.sentAt(0))
	response, _ := client.OnChallenge(challengeEnv.Payload)
	driver.events <- LinkEvent{
		Kind: EventDataReceived, LinkAddress: "peer-addr",
		Data: response, DataType: DataTypeControl,
	}

	pollUntil(t, time.Second, func() bool { return tr.sentCount() >= 2 })
	resultEnv, _ := DecodeEnvelope(tr.sentAt(1))
	if resultEnv.Payload[0] != 0x00 {
		t.Fatalf("expected failure result for a wrong access code")
	}
	pollUntil(t, time.Second, func() bool { return tr.disconnectCount() > 0 })

	if _, registered := c.registry.Get(remoteNodeID); registered {
		t.Fatalf("peer must not be registered after a failed handshake")
	}
}
