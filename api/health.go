package api

import (
	"net/http"

	"github.com/nexobotics/nova/internal/log"
)

// HealthResponse is the GET /health response body.
type HealthResponse struct {
	Status         string `json:"status"`
	RAGInitialized bool   `json:"rag_initialized"`
	Documents      int    `json:"documents,omitempty"`
}

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	svc    Answerer
	logger log.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(svc Answerer, logger log.Logger) *HealthHandler {
	return &HealthHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
}

// handleHealth reports process liveness plus whether the retrieval side is
// usable. A broken knowledge store still returns 200: the service can
// serve persona-only chat, and rag_initialized=false is the operator's
// signal to investigate.
func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy"}

	if h.svc != nil {
		count, err := h.svc.DocumentCount(r.Context())
		if err != nil {
			h.logger.Warn("health check: knowledge store unreachable", "error", err)
		} else {
			resp.RAGInitialized = true
			resp.Documents = count
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
