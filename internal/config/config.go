package config

import "time"

// CurrentConfigVersion is the latest configuration schema version.
// Bump this when adding fields that require migration.
const CurrentConfigVersion = 1

// MeshConfig is the on-disk, versioned configuration for a mesh radio
// node: the constants enumerated in §9 of the governing specification,
// plus identity and control-daemon settings, loaded from a single YAML
// file instead of hard-coded defaults.
type MeshConfig struct {
	Version int            `yaml:"version,omitempty"`
	Identity IdentityConfig `yaml:"identity"`
	Group    GroupConfig    `yaml:"group,omitempty"`
	Tuning   TuningConfig   `yaml:"tuning,omitempty"`
	Daemon   DaemonConfig   `yaml:"daemon,omitempty"`
}

// IdentityConfig holds the node's own persistent identity.
type IdentityConfig struct {
	// NodeID is the node's 32-bit identity used in heartbeats, the
	// handshake, and collision tie-breaking. Zero means "generate one
	// on first run and persist it back to this file."
	NodeID uint32 `yaml:"node_id,omitempty"`
}

// GroupConfig optionally auto-joins or auto-creates a group at startup,
// so a headless node can come up already radio-active.
type GroupConfig struct {
	AutoJoin   string `yaml:"auto_join,omitempty"`
	AccessCode string `yaml:"access_code,omitempty"`
	Create     bool   `yaml:"create,omitempty"`
}

// TuningConfig mirrors pkg/mesh.Constants: every timeout and limit from
// §6/§9 enumerated in one place instead of compiled in. Zero-value
// fields fall back to pkg/mesh.DefaultConstants() defaults in ToConstants;
// Load leaves them zero.
type TuningConfig struct {
	TargetPeers               int           `yaml:"target_peers,omitempty"`
	MaxPeers                  int           `yaml:"max_peers,omitempty"`
	HeartbeatInterval         time.Duration `yaml:"heartbeat_interval,omitempty"`
	HeartbeatTimeout          time.Duration `yaml:"heartbeat_timeout,omitempty"`
	PeerConnectTimeout        time.Duration `yaml:"peer_connect_timeout,omitempty"`
	PacketCacheTimeout        time.Duration `yaml:"packet_cache_timeout,omitempty"`
	GroupAdvertisementTimeout time.Duration `yaml:"group_advertisement_timeout,omitempty"`
	GroupJoinTimeout          time.Duration `yaml:"group_join_timeout,omitempty"`
	CleanupPeriod             time.Duration `yaml:"cleanup_period,omitempty"`
	MaxAudioQueueCapacity     int           `yaml:"max_audio_queue_capacity,omitempty"`
	AudioStarvationThreshold  int           `yaml:"audio_starvation_threshold,omitempty"`
	BLEOperationTimeout       time.Duration `yaml:"ble_operation_timeout,omitempty"`
	ScanStartsPerWindow       int           `yaml:"scan_starts_per_window,omitempty"`
	ScanWindow                time.Duration `yaml:"scan_window,omitempty"`
}

// DaemonConfig controls the local control-plane API's listening socket.
type DaemonConfig struct {
	// SocketPath is the Unix domain socket the control daemon listens
	// on. Empty means meshd.sock in the default config directory.
	SocketPath string `yaml:"socket_path,omitempty"`
}
