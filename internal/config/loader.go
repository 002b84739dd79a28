package config

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/airmesh/mesh/pkg/mesh"
)

// DefaultConfigDir returns the default meshd config directory
// (~/.config/meshd).
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "meshd"), nil
}

// checkConfigFilePermissions rejects a config file with overly permissive
// permissions. The access code configured under group.access_code is a
// shared secret, so a world-readable config file leaks it. Returns an
// error whenever any group or other permission bit is set.
func checkConfigFilePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return nil // file access errors are handled by the caller
	}
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		return fmt.Errorf("config file %s has overly permissive mode %04o; expected 0600 — fix with: chmod 600 %s", path, mode, path)
	}
	return nil
}

// Load reads and parses a MeshConfig from path. A missing node_id is
// generated and persisted back to path so subsequent runs keep the same
// identity. Returns ErrConfigNotFound if path does not exist, and
// ErrConfigVersionTooNew if the file's version is newer than
// CurrentConfigVersion.
func Load(path string) (*MeshConfig, error) {
	if err := checkConfigFilePermissions(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg MeshConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	version := cfg.Version
	if version == 0 {
		version = 1
	}
	if version > CurrentConfigVersion {
		return nil, fmt.Errorf("%w: version %d is newer than supported version %d; please upgrade meshd", ErrConfigVersionTooNew, version, CurrentConfigVersion)
	}
	cfg.Version = version

	if cfg.Identity.NodeID == 0 {
		cfg.Identity.NodeID = rand.Uint32()
		if err := Save(path, &cfg); err != nil {
			return nil, fmt.Errorf("persist generated node_id: %w", err)
		}
	}

	return &cfg, nil
}

// Save writes cfg to path as YAML, creating or replacing it with 0600
// permissions. The write is not atomic: a config a running daemon is
// also reading should be edited via a separate path and renamed into
// place by the caller.
func Save(path string, cfg *MeshConfig) error {
	if cfg.Version == 0 {
		cfg.Version = CurrentConfigVersion
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file %s: %w", path, err)
	}
	return nil
}

// ToConstants overlays the non-zero fields of t onto mesh's §9 defaults,
// so an operator only needs to name the timeouts they want to change.
func (t TuningConfig) ToConstants() mesh.Constants {
	c := mesh.DefaultConstants()
	if t.TargetPeers != 0 {
		c.TargetPeers = t.TargetPeers
	}
	if t.MaxPeers != 0 {
		c.MaxPeers = t.MaxPeers
	}
	if t.HeartbeatInterval != 0 {
		c.HeartbeatInterval = t.HeartbeatInterval
	}
	if t.HeartbeatTimeout != 0 {
		c.HeartbeatTimeout = t.HeartbeatTimeout
	}
	if t.PeerConnectTimeout != 0 {
		c.PeerConnectTimeout = t.PeerConnectTimeout
	}
	if t.PacketCacheTimeout != 0 {
		c.PacketCacheTimeout = t.PacketCacheTimeout
	}
	if t.GroupAdvertisementTimeout != 0 {
		c.GroupAdvertisementTimeout = t.GroupAdvertisementTimeout
	}
	if t.GroupJoinTimeout != 0 {
		c.GroupJoinTimeout = t.GroupJoinTimeout
	}
	if t.CleanupPeriod != 0 {
		c.CleanupPeriod = t.CleanupPeriod
	}
	if t.MaxAudioQueueCapacity != 0 {
		c.MaxAudioQueueCapacity = t.MaxAudioQueueCapacity
	}
	if t.AudioStarvationThreshold != 0 {
		c.AudioStarvationThreshold = t.AudioStarvationThreshold
	}
	if t.BLEOperationTimeout != 0 {
		c.BLEOperationTimeout = t.BLEOperationTimeout
	}
	if t.ScanStartsPerWindow != 0 {
		c.ScanStartsPerWindow = t.ScanStartsPerWindow
	}
	if t.ScanWindow != 0 {
		c.ScanWindow = t.ScanWindow
	}
	return c
}
