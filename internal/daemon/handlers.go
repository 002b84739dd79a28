package daemon

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/airmesh/mesh/internal/validate"
	"github.com/airmesh/mesh/pkg/mesh"
)

// maxRequestBodySize limits JSON request bodies to prevent unbounded
// memory consumption from oversized or malicious payloads.
const maxRequestBodySize = 1 << 20 // 1 MB

// registerRoutes sets up all HTTP routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/peers", s.handlePeers)
	mux.HandleFunc("POST /v1/group/create", s.handleGroupCreate)
	mux.HandleFunc("POST /v1/group/join", s.handleGroupJoin)
	mux.HandleFunc("POST /v1/group/leave", s.handleGroupLeave)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(DataResponse{Data: data})
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	state := s.ctrl.State()
	topo := s.ctrl.Topology()
	respondJSON(w, http.StatusOK, StatusResponse{
		NodeID:        s.ctrl.OwnNodeID(),
		State:         state.Kind.String(),
		GroupName:     state.GroupName,
		PeerCount:     state.PeerCount,
		NetworkID:     topo.NetworkID,
		Hops:          int(topo.HopsToRoot),
		IsRoot:        topo.HopsToRoot == 0,
		UptimeSeconds: int(time.Since(s.startedAt).Seconds()),
		Version:       s.version,
	})
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	peers := s.ctrl.Peers()
	infos := make([]PeerInfo, 0, len(peers))
	for _, p := range peers {
		infos = append(infos, PeerInfo{
			NodeID:          p.NodeID,
			Transport:       p.TransportKind.String(),
			LastHeardMillis: p.LastHeardAgo.Milliseconds(),
		})
	}
	respondJSON(w, http.StatusOK, infos)
}

func (s *Server) handleGroupCreate(w http.ResponseWriter, r *http.Request) {
	var req GroupCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.GroupName(req.GroupName); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.AccessCode(req.AccessCode); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ctrl.CreateGroup(req.GroupName, req.AccessCode); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "radio_active"})
}

func (s *Server) handleGroupJoin(w http.ResponseWriter, r *http.Request) {
	var req GroupJoinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.GroupName(req.GroupName); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.AccessCode(req.AccessCode); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.ctrl.State().Kind != mesh.StateDiscovering {
		if err := s.ctrl.StartGroupScan(); err != nil {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
	}
	if err := s.ctrl.JoinGroup(req.GroupName, req.AccessCode); err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "radio_active"})
}

func (s *Server) handleGroupLeave(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Leave()
	respondJSON(w, http.StatusOK, map[string]string{"status": "idle"})
}
