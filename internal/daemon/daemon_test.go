package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/airmesh/mesh/pkg/mesh"
)

func newTestController(t *testing.T, nodeID mesh.NodeID) *mesh.Controller {
	t.Helper()
	driver := newStubLinkDriver()
	ctrl := mesh.NewController(nodeID, driver, nil, mesh.DefaultConstants(), nil, nil)
	t.Cleanup(func() {
		ctrl.Leave()
		driver.Destroy()
	})
	return ctrl
}

func TestServerStartRemovesStaleSocket(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "mesh.sock")
	cookiePath := filepath.Join(dir, "mesh.cookie")

	// Simulate a leftover socket file from a crashed prior process:
	// nothing is listening on it.
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ln.Close()

	srv := NewServer(newTestController(t, 1), socketPath, cookiePath, "test", nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start should clean up a stale socket: %v", err)
	}
	defer srv.Stop()
}

func TestServerStartFailsWhenSocketAlreadyLive(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "mesh.sock")
	cookiePath := filepath.Join(dir, "mesh.cookie")

	first := NewServer(newTestController(t, 1), socketPath, cookiePath, "test", nil)
	if err := first.Start(); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()

	second := NewServer(newTestController(t, 2), socketPath, cookiePath+".2", "test", nil)
	err := second.Start()
	if err == nil {
		t.Fatalf("expected an error starting a second daemon on the same live socket")
	}
}

func TestServerStopRemovesSocketAndCookie(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "mesh.sock")
	cookiePath := filepath.Join(dir, "mesh.cookie")

	srv := NewServer(newTestController(t, 1), socketPath, cookiePath, "test", nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	srv.Stop()

	dialCtx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	var d net.Dialer
	if _, err := d.DialContext(dialCtx, "unix", socketPath); err == nil {
		t.Fatalf("expected the socket to be gone after Stop")
	}
	if _, err := os.Stat(cookiePath); !os.IsNotExist(err) {
		t.Fatalf("expected the cookie file to be gone after Stop, stat err = %v", err)
	}
}
