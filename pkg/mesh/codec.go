package mesh

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Control envelope message types (§4.A).
type MessageType byte

const (
	MsgAuthChallenge MessageType = 0x01
	MsgAuthResponse  MessageType = 0x02
	MsgAuthResult    MessageType = 0x03
	MsgClientHello   MessageType = 0x04
	MsgHeartbeat     MessageType = 0x10
	MsgPing          MessageType = 0xA0
)

// ProtocolVersion is the current control-envelope version, carried in the
// high nibble of the first envelope byte.
const ProtocolVersion = 1

// handshakeHashLen is the fixed width of the truncated SHA-256 digest
// carried in a handshake response. Fixed by the minimum MTU budget (§6):
// the 23-byte default ATT MTU must fit envelope(2) + hash(12) + nodeId(4).
const handshakeHashLen = 12

// AdvertisingServiceDataLen is the fixed size of the BLE advertising
// service-data payload (§4.A).
const AdvertisingServiceDataLen = 10

// HeartbeatPayloadLen is the fixed size of a heartbeat control payload.
const HeartbeatPayloadLen = 9

// HandshakeResponseLen is the fixed size of a handshake response payload.
const HandshakeResponseLen = handshakeHashLen + 4

// EnvelopeHeaderLen is the minimum length of a control envelope.
const EnvelopeHeaderLen = 2

// AdvertisingServiceData is the 10-byte struct broadcast in the BLE main
// advertisement's ServiceData (§4.A).
type AdvertisingServiceData struct {
	NodeID      uint32
	NetworkID   uint32
	HopsToRoot  uint8
	IsAvailable bool
}

// EncodeAdvertisingServiceData serializes the 10-byte advertising payload.
func EncodeAdvertisingServiceData(d AdvertisingServiceData) []byte {
	b := make([]byte, AdvertisingServiceDataLen)
	binary.LittleEndian.PutUint32(b[0:4], d.NodeID)
	binary.LittleEndian.PutUint32(b[4:8], d.NetworkID)
	b[8] = d.HopsToRoot
	if d.IsAvailable {
		b[9] = 1
	}
	return b
}

// DecodeAdvertisingServiceData parses the 10-byte advertising payload.
func DecodeAdvertisingServiceData(b []byte) (AdvertisingServiceData, error) {
	if len(b) != AdvertisingServiceDataLen {
		return AdvertisingServiceData{}, fmt.Errorf("%w: advertising service-data must be %d bytes, got %d", ErrMalformedFrame, AdvertisingServiceDataLen, len(b))
	}
	return AdvertisingServiceData{
		NodeID:      binary.LittleEndian.Uint32(b[0:4]),
		NetworkID:   binary.LittleEndian.Uint32(b[4:8]),
		HopsToRoot:  b[8],
		IsAvailable: b[9] != 0,
	}, nil
}

// TruncateUTF8 returns a prefix of s, re-encoded as bytes, of at most n
// bytes, cut only on a code-point boundary. The result is always valid
// UTF-8 and decodes to a prefix of s's code points.
func TruncateUTF8(s string, n int) []byte {
	if len(s) <= n {
		return []byte(s)
	}
	b := []byte(s)[:n]
	// Back up until b ends exactly on a rune boundary: the byte one past
	// the cut must itself start a new rune (or b is empty).
	for len(b) > 0 && !utf8.RuneStart(s[len(b)]) {
		b = b[:len(b)-1]
	}
	return b
}

// EncodeGroupName truncates a group name to the advertising budget.
func EncodeGroupName(name string) []byte {
	return TruncateUTF8(name, MaxGroupNameAdvertisingBytes)
}

// MaxGroupNameAdvertisingBytes is the wire budget for an advertised group
// name (manufacturer data block, §4.A/§6).
const MaxGroupNameAdvertisingBytes = 20

// ControlEnvelope is a parsed control-characteristic frame (§4.A).
type ControlEnvelope struct {
	Version byte
	Type    MessageType
	Payload []byte
}

// EncodeEnvelope serializes a control envelope: versionFlags | messageType | payload.
func EncodeEnvelope(t MessageType, payload []byte) []byte {
	b := make([]byte, EnvelopeHeaderLen+len(payload))
	b[0] = ProtocolVersion << 4
	b[1] = byte(t)
	copy(b[2:], payload)
	return b
}

// DecodeEnvelope parses a control envelope. Fails with ErrMalformedFrame if
// the frame is shorter than the 2-byte header.
func DecodeEnvelope(b []byte) (ControlEnvelope, error) {
	if len(b) < EnvelopeHeaderLen {
		return ControlEnvelope{}, fmt.Errorf("%w: envelope shorter than %d bytes", ErrMalformedFrame, EnvelopeHeaderLen)
	}
	return ControlEnvelope{
		Version: b[0] >> 4,
		Type:    MessageType(b[1]),
		Payload: b[2:],
	}, nil
}

// HeartbeatPayload is the 9-byte body of a HEARTBEAT control message.
type HeartbeatPayload struct {
	NetworkID  uint32
	Sequence   int32
	HopsToRoot uint8
}

// EncodeHeartbeat serializes a heartbeat payload: networkId(4) | sequence(4, signed) | hops(1).
func EncodeHeartbeat(networkID uint32, sequence int32, hops uint8) []byte {
	b := make([]byte, HeartbeatPayloadLen)
	binary.LittleEndian.PutUint32(b[0:4], networkID)
	binary.LittleEndian.PutUint32(b[4:8], uint32(sequence))
	b[8] = hops
	return b
}

// DecodeHeartbeat parses a heartbeat payload.
func DecodeHeartbeat(b []byte) (HeartbeatPayload, error) {
	if len(b) != HeartbeatPayloadLen {
		return HeartbeatPayload{}, fmt.Errorf("%w: heartbeat payload must be %d bytes, got %d", ErrMalformedFrame, HeartbeatPayloadLen, len(b))
	}
	return HeartbeatPayload{
		NetworkID:  binary.LittleEndian.Uint32(b[0:4]),
		Sequence:   int32(binary.LittleEndian.Uint32(b[4:8])),
		HopsToRoot: b[8],
	}, nil
}

// HandshakeResponse is the 16-byte body of an AUTH_RESPONSE message.
type HandshakeResponse struct {
	Hash   [handshakeHashLen]byte
	NodeID uint32
}

// ComputeHandshakeHash computes the first 12 bytes of
// SHA-256(accessCode ∥ nonce ∥ decimal(nodeId)) (§4.A).
func ComputeHandshakeHash(accessCode string, nonce []byte, nodeID uint32) [handshakeHashLen]byte {
	h := sha256.New()
	h.Write([]byte(accessCode))
	h.Write(nonce)
	h.Write([]byte(strconv.FormatUint(uint64(nodeID), 10)))
	sum := h.Sum(nil)
	var out [handshakeHashLen]byte
	copy(out[:], sum[:handshakeHashLen])
	return out
}

// EncodeHandshakeResponse serializes a handshake response: hash(12) | nodeId(4).
func EncodeHandshakeResponse(accessCode string, nonce []byte, nodeID uint32) []byte {
	hash := ComputeHandshakeHash(accessCode, nonce, nodeID)
	b := make([]byte, HandshakeResponseLen)
	copy(b[0:handshakeHashLen], hash[:])
	binary.LittleEndian.PutUint32(b[handshakeHashLen:], nodeID)
	return b
}

// DecodeHandshakeResponse parses a handshake response payload.
func DecodeHandshakeResponse(b []byte) (HandshakeResponse, error) {
	if len(b) != HandshakeResponseLen {
		return HandshakeResponse{}, fmt.Errorf("%w: handshake response must be %d bytes, got %d", ErrMalformedFrame, HandshakeResponseLen, len(b))
	}
	var resp HandshakeResponse
	copy(resp.Hash[:], b[0:handshakeHashLen])
	resp.NodeID = binary.LittleEndian.Uint32(b[handshakeHashLen:])
	return resp, nil
}
