package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
)

// Client connects to a running control daemon via its Unix socket.
type Client struct {
	httpClient *http.Client
	socketPath string
	authToken  string
}

// NewClient creates a new daemon client. It reads the auth cookie
// automatically from the cookie file next to the socket.
func NewClient(socketPath, cookiePath string) (*Client, error) {
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrDaemonNotRunning, socketPath)
	}
	token, err := os.ReadFile(cookiePath)
	if err != nil {
		return nil, fmt.Errorf("read daemon cookie: %w", err)
	}

	return &Client{
		socketPath: socketPath,
		authToken:  strings.TrimSpace(string(token)),
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}, nil
}

// do sends an HTTP request to the daemon and returns the raw response body.
func (c *Client) do(method, path string, body io.Reader) ([]byte, int, error) {
	req, err := http.NewRequest(method, "http://daemon"+path, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

// doJSON sends a request and decodes the JSON {"data": ...} envelope into target.
func (c *Client) doJSON(method, path string, body io.Reader, target any) error {
	data, status, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	if status >= 400 {
		var errResp ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("daemon: %s", errResp.Error)
		}
		return fmt.Errorf("daemon returned HTTP %d", status)
	}
	if target != nil {
		var raw struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if err := json.Unmarshal(raw.Data, target); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

// Status returns the daemon's current state snapshot.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.doJSON("GET", "/v1/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Peers returns the list of currently registered peers.
func (c *Client) Peers() ([]PeerInfo, error) {
	var resp []PeerInfo
	if err := c.doJSON("GET", "/v1/peers", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CreateGroup creates and advertises a new group.
func (c *Client) CreateGroup(groupName, accessCode string) error {
	body, _ := json.Marshal(GroupCreateRequest{GroupName: groupName, AccessCode: accessCode})
	return c.doJSON("POST", "/v1/group/create", strings.NewReader(string(body)), nil)
}

// JoinGroup scans for and joins an existing group.
func (c *Client) JoinGroup(groupName, accessCode string) error {
	body, _ := json.Marshal(GroupJoinRequest{GroupName: groupName, AccessCode: accessCode})
	return c.doJSON("POST", "/v1/group/join", strings.NewReader(string(body)), nil)
}

// LeaveGroup tears down the current session and returns to Idle.
func (c *Client) LeaveGroup() error {
	return c.doJSON("POST", "/v1/group/leave", nil, nil)
}
