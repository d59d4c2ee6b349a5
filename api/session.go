package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nexobotics/nova/internal/log"
)

// ClearSessionRequest is the POST /clear-session request body.
type ClearSessionRequest struct {
	SessionID string `json:"session_id"`
}

// ClearSessionResponse is the POST /clear-session response body.
type ClearSessionResponse struct {
	Status string `json:"status"`
}

// SessionHandler handles session management endpoints.
type SessionHandler struct {
	svc    Answerer
	logger log.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(svc Answerer, logger log.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /clear-session", h.handleClear)
}

// handleClear drops a session's history. Clearing a session that never
// existed still succeeds: the client's goal (a fresh conversation) holds
// either way.
func (h *SessionHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req ClearSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	existed := h.svc.ClearSession(req.SessionID)
	h.logger.Debug("session cleared", "session_id", req.SessionID, "existed", existed)
	writeJSON(w, http.StatusOK, ClearSessionResponse{Status: "success"})
}
