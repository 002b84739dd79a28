package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "mesh.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadMissingFileReturnsErrConfigNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("err = %v, want ErrConfigNotFound", err)
	}
}

func TestLoadGeneratesAndPersistsNodeID(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), "group:\n  auto_join: friends\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Identity.NodeID == 0 {
		t.Fatalf("expected a generated non-zero node_id")
	}
	if cfg.Group.AutoJoin != "friends" {
		t.Fatalf("AutoJoin = %q, want friends", cfg.Group.AutoJoin)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if reloaded.Identity.NodeID != cfg.Identity.NodeID {
		t.Fatalf("node_id changed across reloads: %d != %d", reloaded.Identity.NodeID, cfg.Identity.NodeID)
	}
}

func TestLoadRejectsFutureVersion(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), "version: 99\nidentity:\n  node_id: 1\n")
	_, err := Load(path)
	if !errors.Is(err, ErrConfigVersionTooNew) {
		t.Fatalf("err = %v, want ErrConfigVersionTooNew", err)
	}
}

func TestLoadRejectsWorldReadablePermissions(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), "identity:\n  node_id: 1\n")
	if err := os.Chmod(path, 0644); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for a world-readable config file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mesh.yaml")
	cfg := &MeshConfig{
		Identity: IdentityConfig{NodeID: 42},
		Group:    GroupConfig{AutoJoin: "g", AccessCode: "secret", Create: true},
		Tuning:   TuningConfig{TargetPeers: 4},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Identity.NodeID != 42 || reloaded.Group.AccessCode != "secret" || !reloaded.Group.Create {
		t.Fatalf("round trip mismatch: %+v", reloaded)
	}
}

func TestTuningConfigToConstantsOverlaysNonZeroFields(t *testing.T) {
	tc := TuningConfig{TargetPeers: 10, HeartbeatInterval: 5 * time.Second}
	c := tc.ToConstants()

	if c.TargetPeers != 10 {
		t.Fatalf("TargetPeers = %d, want 10", c.TargetPeers)
	}
	if c.HeartbeatInterval != 5*time.Second {
		t.Fatalf("HeartbeatInterval = %v, want 5s", c.HeartbeatInterval)
	}
	// Untouched fields keep the §9 default.
	if c.MaxPeers != 5 {
		t.Fatalf("MaxPeers = %d, want the default of 5", c.MaxPeers)
	}
}
