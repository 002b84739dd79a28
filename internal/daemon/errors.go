package daemon

import "errors"

var (
	// ErrDaemonAlreadyRunning is returned when trying to start a daemon
	// while another instance is already listening on the same socket.
	ErrDaemonAlreadyRunning = errors.New("daemon already running")

	// ErrDaemonNotRunning is returned when trying to connect to a daemon
	// that is not running (socket file does not exist).
	ErrDaemonNotRunning = errors.New("daemon not running")

	// ErrUnauthorized is returned when a request lacks a valid auth
	// cookie.
	ErrUnauthorized = errors.New("unauthorized")
)
