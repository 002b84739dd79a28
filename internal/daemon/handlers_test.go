package daemon

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/airmesh/mesh/pkg/mesh"
)

// stubLinkDriver is a no-op mesh.LinkDriver: enough for the controller
// to complete state transitions without a real BLE radio underneath.
type stubLinkDriver struct {
	events chan mesh.LinkEvent
}

func newStubLinkDriver() *stubLinkDriver {
	return &stubLinkDriver{events: make(chan mesh.LinkEvent, 4)}
}

func (s *stubLinkDriver) ValidateCapabilities() error                       { return nil }
func (s *stubLinkDriver) SetCredentials(string, mesh.NodeID)                {}
func (s *stubLinkDriver) StartScanning() error                              { return nil }
func (s *stubLinkDriver) StopScanning() error                               { return nil }
func (s *stubLinkDriver) StartAdvertising(mesh.AdvertisingConfig) error     { return nil }
func (s *stubLinkDriver) StopAdvertising() error                            { return nil }
func (s *stubLinkDriver) ConnectTo(context.Context, string, mesh.NodeID) error {
	return nil
}
func (s *stubLinkDriver) DisconnectNode(mesh.NodeID) error { return nil }
func (s *stubLinkDriver) DisconnectAll() error             { return nil }
func (s *stubLinkDriver) Broadcast([]byte, mesh.DataType) error { return nil }
func (s *stubLinkDriver) TransportForAddress(string) (mesh.TransportStrategy, bool) {
	return nil, false
}
func (s *stubLinkDriver) Events() <-chan mesh.LinkEvent { return s.events }
func (s *stubLinkDriver) Destroy() error {
	close(s.events)
	return nil
}

func newTestServer(t *testing.T) (*Server, *Client) {
	t.Helper()
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "mesh.sock")
	cookiePath := filepath.Join(dir, "mesh.cookie")

	driver := newStubLinkDriver()
	ctrl := mesh.NewController(7, driver, nil, mesh.DefaultConstants(), nil, nil)
	t.Cleanup(func() {
		ctrl.Leave()
		driver.Destroy()
	})

	srv := NewServer(ctrl, socketPath, cookiePath, "test", nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Stop)

	client, err := NewClient(socketPath, cookiePath)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return srv, client
}

func TestServerStatusReflectsControllerState(t *testing.T) {
	_, client := newTestServer(t)

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != "idle" {
		t.Fatalf("State = %q, want Idle", status.State)
	}
	if status.NodeID != 7 {
		t.Fatalf("NodeID = %d, want 7", status.NodeID)
	}
}

func TestServerCreateGroupTransitionsToRadioActive(t *testing.T) {
	_, client := newTestServer(t)

	if err := client.CreateGroup("airwaves", "secret-code"); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != "radio_active" || status.GroupName != "airwaves" {
		t.Fatalf("status = %+v, want radio_active(airwaves)", status)
	}

	if err := client.LeaveGroup(); err != nil {
		t.Fatalf("LeaveGroup: %v", err)
	}
	status, _ = client.Status()
	if status.State != "idle" {
		t.Fatalf("State after leave = %q, want Idle", status.State)
	}
}

func TestServerCreateGroupRejectsEmptyAccessCode(t *testing.T) {
	_, client := newTestServer(t)

	err := client.CreateGroup("airwaves", "")
	if err == nil {
		t.Fatalf("expected an error for an empty access code")
	}
}

func TestServerRejectsRequestsWithoutCookie(t *testing.T) {
	srv, _ := newTestServer(t)

	badClient, err := NewClient(srv.socketPath, srv.cookiePath)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	badClient.authToken = "wrong-token"

	if _, err := badClient.Status(); err == nil {
		t.Fatalf("expected an unauthorized error with a bad token")
	}
}

func TestServerPeersEmptyBeforeAnyConnection(t *testing.T) {
	_, client := newTestServer(t)

	peers, err := client.Peers()
	if err != nil {
		t.Fatalf("Peers: %v", err)
	}
	if len(peers) != 0 {
		t.Fatalf("expected no peers, got %v", peers)
	}
}

func TestClientNewClientMissingSocketIsDaemonNotRunning(t *testing.T) {
	dir := t.TempDir()
	_, err := NewClient(filepath.Join(dir, "missing.sock"), filepath.Join(dir, "missing.cookie"))
	if !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("err = %v, want ErrDaemonNotRunning", err)
	}
}
