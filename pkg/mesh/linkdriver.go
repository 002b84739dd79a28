package mesh

import "context"

// LinkEventKind enumerates the single event stream the Link Driver
// produces to the core (§6).
type LinkEventKind int

const (
	EventPeerDiscovered LinkEventKind = iota
	EventPeerConnected
	EventPeerDisconnected
	EventDataReceived
)

// LinkEvent is one item from the Link Driver's event stream. Exactly one
// of the payload fields is meaningful, selected by Kind.
//
// LinkAddress identifies the physical link for Connected, Disconnected,
// and DataReceived: the server side of a handshake does not learn the
// remote NodeID until AUTH_RESPONSE is decoded (§4.G step 5), so the
// mesh layer correlates pre-authentication traffic by address and only
// starts keying by NodeID once a PeerRegistry entry exists. NodeID is
// populated on Connected whenever the driver already knows it (always
// true for links we dialed ourselves via ConnectTo; zero otherwise).
type LinkEvent struct {
	Kind LinkEventKind

	Discovered  DiscoveredPeer // EventPeerDiscovered
	LinkAddress string         // EventPeerConnected, EventPeerDisconnected, EventDataReceived
	NodeID      NodeID         // EventPeerConnected (if known), EventPeerDisconnected (if known)
	Data        []byte         // EventDataReceived
	DataType    DataType       // EventDataReceived
}

// LinkDriver is the capability set required of any physical BLE transport
// implementation (§6). The core treats it as an external collaborator:
// GATT server/client primitives, the advertiser, and the scanner are out
// of scope for this module and live behind this interface.
type LinkDriver interface {
	// ValidateCapabilities reports whether the platform can run a mesh
	// node at all (radio present, advertising supported).
	ValidateCapabilities() error

	// SetCredentials installs the access code and own node id used for
	// this session. Called before any Connect.
	SetCredentials(accessCode string, ownNodeID NodeID)

	StartScanning() error
	StopScanning() error

	StartAdvertising(cfg AdvertisingConfig) error
	StopAdvertising() error

	// ConnectTo dials linkAddress, expected to belong to nodeID. The
	// driver must eventually emit EventPeerConnected(nodeID) on success
	// or EventPeerDisconnected(nodeID) on failure/timeout.
	ConnectTo(ctx context.Context, linkAddress string, nodeID NodeID) error

	DisconnectNode(nodeID NodeID) error
	DisconnectAll() error

	Broadcast(b []byte, dt DataType) error

	// TransportForAddress returns the per-link send/disconnect facility
	// for a connected link, keyed by the address reported on Connected.
	// Used by the mesh layer to drive the handshake and, once
	// authenticated, to register a TransportStrategy against a NodeID.
	TransportForAddress(linkAddress string) (TransportStrategy, bool)

	// Events returns the single event stream for this driver instance.
	Events() <-chan LinkEvent

	// Destroy releases all underlying resources. The driver must not
	// emit further events after Destroy returns.
	Destroy() error
}
