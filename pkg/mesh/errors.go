package mesh

import "errors"

// Error taxonomy (§7). These are sentinels, not exhaustive error types:
// callers match with errors.Is and apply the propagation policy named
// alongside each one below.
var (
	// ErrCapabilityUnavailable: the platform lacks the link (radio off,
	// advertising unsupported). Surfaced to the caller as a join/create
	// failure; never recovered internally.
	ErrCapabilityUnavailable = errors.New("mesh: capability unavailable")

	// ErrMalformedFrame: the codec rejected bytes. Callers must drop the
	// frame without disconnecting the link (except where the handshake
	// state machine treats it as AuthFailed).
	ErrMalformedFrame = errors.New("mesh: malformed frame")

	// ErrAuthFailed: handshake hash mismatch. The server sends
	// AUTH_RESULT(0x00) then disconnects after flush; the client
	// disconnects on receipt.
	ErrAuthFailed = errors.New("mesh: authentication failed")

	// ErrConnectTimeout: PEER_CONNECT_TIMEOUT elapsed before
	// authentication completed. The connection attempt is cancelled and
	// nothing is recorded in the registry.
	ErrConnectTimeout = errors.New("mesh: connect timeout")

	// ErrOperationStalled: a BLE operation exceeded BLE_OPERATION_TIMEOUT.
	// The link is force-disconnected; the peer is unregistered and may be
	// rediscovered.
	ErrOperationStalled = errors.New("mesh: operation stalled")

	// ErrPeerTimeout: no frame heard from a peer within
	// PEER_CONNECT_TIMEOUT. Same effect as ErrOperationStalled.
	ErrPeerTimeout = errors.New("mesh: peer timeout")

	// ErrScanRateLimited: the scan-start window is full. Swallowed by the
	// caller; scanning resumes once the window has room.
	ErrScanRateLimited = errors.New("mesh: scan rate limited")

	// ErrJoinTimedOut: no authentication completed within
	// GROUP_JOIN_TIMEOUT. The controller returns to Idle and surfaces
	// "Connection Timed Out" to the caller.
	ErrJoinTimedOut = errors.New("mesh: join timed out")

	// ErrUnknownPeer is returned by registry/controller operations
	// addressed to a nodeId with no current connection.
	ErrUnknownPeer = errors.New("mesh: unknown peer")

	// ErrInvalidState is returned when an operation is attempted from a
	// state that doesn't support it (e.g. joinGroup while RadioActive).
	ErrInvalidState = errors.New("mesh: invalid state for operation")
)
