package mesh

// TransportStrategy is the capability a PeerConnection holds to reach its
// remote node: either we dialed it (Outgoing) or it dialed us (Incoming).
// Implementations are plain records backed by the Link Driver façade, not
// an inheritance hierarchy (§9).
type TransportStrategy interface {
	// Kind reports which side dialed this link.
	Kind() TransportKind

	// LinkAddress is the opaque address the Link Driver uses to identify
	// the physical connection (may change across reconnects, e.g. a MAC
	// rotation).
	LinkAddress() string

	// Send writes bytes of the given DataType on this link. For Control
	// data it returns only once the Link Driver confirms the write is
	// flushed; for Audio it may return once queued (see the BLE
	// Operation Queue, §4.E).
	Send(b []byte, dt DataType) error

	// Disconnect tears down the underlying link.
	Disconnect() error
}
