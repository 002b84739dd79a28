package mesh

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
)

// nonceLen is the width of the server-generated ASCII nonce (§4.G).
const nonceLen = 8

const nonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateNonce returns a fresh 8-byte ASCII nonce.
func GenerateNonce() ([]byte, error) {
	raw := make([]byte, nonceLen)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("mesh: generate nonce: %w", err)
	}
	nonce := make([]byte, nonceLen)
	for i, b := range raw {
		nonce[i] = nonceAlphabet[int(b)%len(nonceAlphabet)]
	}
	return nonce, nil
}

// HandshakeState enumerates the per-link client/server handshake state
// machine (§9): AwaitHello -> AwaitChallenge -> AwaitResponse ->
// AwaitResult -> Authenticated | Failed.
type HandshakeState int

const (
	HandshakeAwaitHello HandshakeState = iota
	HandshakeAwaitChallenge
	HandshakeAwaitResponse
	HandshakeAwaitResult
	HandshakeAuthenticated
	HandshakeFailed
)

func (s HandshakeState) String() string {
	switch s {
	case HandshakeAwaitHello:
		return "await_hello"
	case HandshakeAwaitChallenge:
		return "await_challenge"
	case HandshakeAwaitResponse:
		return "await_response"
	case HandshakeAwaitResult:
		return "await_result"
	case HandshakeAuthenticated:
		return "authenticated"
	case HandshakeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ClientHandshake drives the client side of §4.G: send CLIENT_HELLO, wait
// for AUTH_CHALLENGE, compute and send AUTH_RESPONSE, wait for AUTH_RESULT.
type ClientHandshake struct {
	accessCode string
	ownNodeID  NodeID
	state      HandshakeState
}

// NewClientHandshake creates a client-side handshake for the given access
// code and own node id, starting in AwaitHello (send CLIENT_HELLO first).
func NewClientHandshake(accessCode string, ownNodeID NodeID) *ClientHandshake {
	return &ClientHandshake{accessCode: accessCode, ownNodeID: ownNodeID, state: HandshakeAwaitHello}
}

// State returns the current handshake state.
func (c *ClientHandshake) State() HandshakeState { return c.state }

// Hello returns the CLIENT_HELLO envelope to send and transitions to
// AwaitChallenge.
func (c *ClientHandshake) Hello() []byte {
	c.state = HandshakeAwaitChallenge
	return EncodeEnvelope(MsgClientHello, nil)
}

// OnChallenge consumes an AUTH_CHALLENGE envelope's payload (the nonce)
// and returns the AUTH_RESPONSE envelope to send, transitioning to
// AwaitResult.
func (c *ClientHandshake) OnChallenge(nonce []byte) ([]byte, error) {
	if c.state != HandshakeAwaitChallenge {
		return nil, fmt.Errorf("%w: unexpected AUTH_CHALLENGE in state %s", ErrMalformedFrame, c.state)
	}
	resp := EncodeHandshakeResponse(c.accessCode, nonce, c.ownNodeID)
	c.state = HandshakeAwaitResult
	return EncodeEnvelope(MsgAuthResponse, resp), nil
}

// OnResult consumes an AUTH_RESULT envelope's payload and reports whether
// authentication succeeded, transitioning to Authenticated or Failed.
func (c *ClientHandshake) OnResult(payload []byte) (bool, error) {
	if c.state != HandshakeAwaitResult {
		return false, fmt.Errorf("%w: unexpected AUTH_RESULT in state %s", ErrMalformedFrame, c.state)
	}
	if len(payload) != 1 {
		return false, fmt.Errorf("%w: AUTH_RESULT payload must be 1 byte", ErrMalformedFrame)
	}
	ok := payload[0] == 0x01
	if ok {
		c.state = HandshakeAuthenticated
	} else {
		c.state = HandshakeFailed
	}
	return ok, nil
}

// ServerHandshake drives the server side of §4.G: on CLIENT_HELLO, issue a
// fresh nonce and AUTH_CHALLENGE; on AUTH_RESPONSE, verify once and reply
// AUTH_RESULT. The nonce is one-shot: a second AUTH_RESPONSE for the same
// link is ignored because the challenge is removed on first use.
type ServerHandshake struct {
	accessCode string
	state      HandshakeState
	nonce      []byte
}

// NewServerHandshake creates a server-side handshake awaiting CLIENT_HELLO.
func NewServerHandshake(accessCode string) *ServerHandshake {
	return &ServerHandshake{accessCode: accessCode, state: HandshakeAwaitHello}
}

// State returns the current handshake state.
func (s *ServerHandshake) State() HandshakeState { return s.state }

// OnHello consumes a CLIENT_HELLO, generates a fresh nonce, and returns
// the AUTH_CHALLENGE envelope to send, transitioning to AwaitResponse.
func (s *ServerHandshake) OnHello() ([]byte, error) {
	if s.state != HandshakeAwaitHello {
		return nil, fmt.Errorf("%w: unexpected CLIENT_HELLO in state %s", ErrMalformedFrame, s.state)
	}
	nonce, err := GenerateNonce()
	if err != nil {
		return nil, err
	}
	s.nonce = nonce
	s.state = HandshakeAwaitResponse
	return EncodeEnvelope(MsgAuthChallenge, nonce), nil
}

// OnResponse verifies an AUTH_RESPONSE payload against the stored nonce.
// On success returns (nodeId, AUTH_RESULT(0x01), nil) and transitions to
// Authenticated. On hash mismatch returns (0, AUTH_RESULT(0x00), nil) and
// transitions to Failed — caller must send the result then disconnect. A
// second call after the first consumes the one-shot nonce and always
// fails, matching "a second AUTH_RESPONSE for the same link is ignored."
func (s *ServerHandshake) OnResponse(payload []byte) (NodeID, []byte, error) {
	if s.state != HandshakeAwaitResponse {
		return 0, EncodeEnvelope(MsgAuthResult, []byte{0x00}), nil
	}
	resp, err := DecodeHandshakeResponse(payload)
	if err != nil {
		return 0, nil, err
	}

	expected := ComputeHandshakeHash(s.accessCode, s.nonce, resp.NodeID)
	s.nonce = nil // one-shot: consumed regardless of outcome

	if subtle.ConstantTimeCompare(expected[:], resp.Hash[:]) == 1 {
		s.state = HandshakeAuthenticated
		return resp.NodeID, EncodeEnvelope(MsgAuthResult, []byte{0x01}), nil
	}
	s.state = HandshakeFailed
	return 0, EncodeEnvelope(MsgAuthResult, []byte{0x00}), nil
}
