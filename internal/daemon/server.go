package daemon

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/airmesh/mesh/pkg/mesh"
)

// Server is the control-plane daemon's Unix socket HTTP API: a local
// surface over the mesh.Controller state machine for group
// create/join/leave and status/peer inspection, grounded on the
// teacher's cookie-authenticated Unix-socket server.
type Server struct {
	ctrl       *mesh.Controller
	log        *slog.Logger
	httpServer *http.Server
	listener   net.Listener
	socketPath string
	cookiePath string
	authToken  string
	version    string
	startedAt  time.Time
}

// NewServer creates a new control-plane API server bound to ctrl.
func NewServer(ctrl *mesh.Controller, socketPath, cookiePath, version string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		ctrl:       ctrl,
		log:        log,
		socketPath: socketPath,
		cookiePath: cookiePath,
		version:    version,
	}
}

// Start creates the Unix socket, writes the auth cookie, and begins
// serving in a background goroutine.
func (s *Server) Start() error {
	token, err := generateCookie()
	if err != nil {
		return fmt.Errorf("generate auth cookie: %w", err)
	}
	s.authToken = token

	if err := s.checkStaleSocket(); err != nil {
		return err
	}

	// Restrictive umask avoids the TOCTOU window between Listen and a
	// separate Chmod: the socket is created with 0600 atomically.
	oldUmask := syscall.Umask(0077)
	listener, err := net.Listen("unix", s.socketPath)
	syscall.Umask(oldUmask)
	if err != nil {
		return fmt.Errorf("listen on socket: %w", err)
	}

	if err := os.WriteFile(s.cookiePath, []byte(token), 0600); err != nil {
		listener.Close()
		os.Remove(s.socketPath)
		return fmt.Errorf("write cookie file: %w", err)
	}

	s.listener = listener
	s.startedAt = time.Now()

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Handler:      requestLogger(s.log)(s.authMiddleware(mux)),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second, // JoinGroup can block up to GROUP_JOIN_TIMEOUT
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("control daemon server error", "error", err)
		}
	}()

	s.log.Info("control daemon listening", "socket", s.socketPath)
	return nil
}

// Stop gracefully shuts down the HTTP server and removes the socket and
// cookie files.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if s.httpServer != nil {
		s.httpServer.Shutdown(ctx)
	}
	os.Remove(s.socketPath)
	os.Remove(s.cookiePath)
	s.log.Info("control daemon stopped")
}

// checkStaleSocket removes a leftover socket file from a prior crashed
// process, and refuses to start if another daemon is actually alive on
// it.
func (s *Server) checkStaleSocket() error {
	if _, err := os.Stat(s.socketPath); os.IsNotExist(err) {
		return nil
	}
	conn, err := net.DialTimeout("unix", s.socketPath, 2*time.Second)
	if err != nil {
		s.log.Info("removing stale control socket", "path", s.socketPath)
		os.Remove(s.socketPath)
		return nil
	}
	conn.Close()
	return fmt.Errorf("%w: socket %s is already in use", ErrDaemonAlreadyRunning, s.socketPath)
}

func generateCookie() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// authMiddleware checks the Authorization: Bearer <token> header on
// every request.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.authToken {
			respondError(w, http.StatusUnauthorized, ErrUnauthorized.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
