package mesh

import "time"

// NodeID is a 32-bit identifier chosen randomly at process start and
// stable for the run (§3).
type NodeID = uint32

// DataType distinguishes control traffic from voice traffic on the wire
// (§6). Control frames carry the envelope in §4.A; audio frames are
// written raw.
type DataType int

const (
	DataTypeControl DataType = iota
	DataTypeAudio
)

func (d DataType) String() string {
	switch d {
	case DataTypeControl:
		return "control"
	case DataTypeAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// TransportKind tags which side dialed a link, used only for
// simultaneous-connection collision tie-breaking (§4.D, §9).
type TransportKind int

const (
	TransportOutgoing TransportKind = iota // we dialed
	TransportIncoming                      // they dialed
)

func (k TransportKind) String() string {
	switch k {
	case TransportOutgoing:
		return "outgoing"
	case TransportIncoming:
		return "incoming"
	default:
		return "unknown"
	}
}

// EngineStateKind enumerates the Mesh Controller's top-level states (§3, §4.H).
type EngineStateKind int

const (
	StateIdle EngineStateKind = iota
	StateDiscovering
	StateJoining
	StateRadioActive
)

func (s EngineStateKind) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	case StateJoining:
		return "joining"
	case StateRadioActive:
		return "radio_active"
	default:
		return "unknown"
	}
}

// EngineState is the controller's current state snapshot (§3).
type EngineState struct {
	Kind      EngineStateKind
	GroupName string // set in Joining and RadioActive
	PeerCount int    // set in RadioActive
}

// AdvertisingConfig is the content of a BLE advertisement (§3). Two
// configs are equal iff every field is equal; refreshAdvertisingLocked relies
// on that to suppress redundant startAdvertising calls.
type AdvertisingConfig struct {
	GroupName   string
	OwnNodeID   NodeID
	NetworkID   NodeID
	HopsToRoot  uint8
	IsAvailable bool
}

// DiscoveredPeer is a transport-level, ephemeral scan result (§3).
type DiscoveredPeer struct {
	LinkAddress string
	GroupName   string
	RSSI        int
	NodeID      NodeID
	NetworkID   NodeID
	HopsToRoot  uint8
	IsAvailable bool
}

// DiscoveredGroup is the UI-facing aggregate of advertisements sharing a
// groupName (§3).
type DiscoveredGroup struct {
	GroupName    string
	HighestRSSI  int
	LastSeenAt   time.Time
}

// Constants holds every tunable named in §9, with the defaults from §6.
// Treat every timeout as configuration enumerated in one place: pass a
// Constants value through the controller rather than scattering literals.
type Constants struct {
	TargetPeers               int
	MaxPeers                  int
	HeartbeatInterval         time.Duration
	HeartbeatTimeout          time.Duration
	PeerConnectTimeout        time.Duration
	PacketCacheTimeout        time.Duration
	GroupAdvertisementTimeout time.Duration
	GroupJoinTimeout          time.Duration
	CleanupPeriod             time.Duration
	MaxAudioQueueCapacity     int
	AudioStarvationThreshold  int
	BLEOperationTimeout       time.Duration
	ScanStartsPerWindow       int
	ScanWindow                time.Duration
}

// DefaultConstants returns the §6 defaults.
func DefaultConstants() Constants {
	return Constants{
		TargetPeers:               3,
		MaxPeers:                  5,
		HeartbeatInterval:         1 * time.Second,
		HeartbeatTimeout:          6 * time.Second,
		PeerConnectTimeout:        5 * time.Second,
		PacketCacheTimeout:        4 * time.Second,
		GroupAdvertisementTimeout: 4 * time.Second,
		GroupJoinTimeout:          8 * time.Second,
		CleanupPeriod:             2 * time.Second,
		MaxAudioQueueCapacity:     5, // ~100ms of 20ms voice frames
		AudioStarvationThreshold:  8,
		BLEOperationTimeout:       3 * time.Second,
		ScanStartsPerWindow:       5,
		ScanWindow:                30 * time.Second,
	}
}
