package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nexobotics/nova/internal/knowledge"
	"github.com/nexobotics/nova/internal/log"
	"github.com/nexobotics/nova/internal/pipeline"
)

// maxChatBodyBytes bounds the request body so oversized payloads fail
// before JSON decoding.
const maxChatBodyBytes = 64 << 10

// ChatRequest is the POST /chat request body.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	UseRAG    *bool  `json:"use_rag,omitempty"` // nil defaults to true
}

// ChatResponse is the POST /chat response body.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

// ChatHandler handles the chat endpoint.
type ChatHandler struct {
	svc    Answerer
	logger log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc Answerer, logger log.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", h.handleChat)
}

// handleChat answers one message.
//
// Requests without a session_id get a fresh UUID, returned in the response
// so the client can continue the conversation. use_rag defaults to true;
// false skips retrieval and answers from the persona alone.
//
// Failure mapping: invalid input is a 400; a broken knowledge store is a
// 503 since operators must act on it; embedding-provider failures degrade
// to a canned reply with a 200, matching what a chat widget can display.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	useRAG := req.UseRAG == nil || *req.UseRAG

	var reply pipeline.Reply
	var err error
	if useRAG {
		reply, err = h.svc.Answer(r.Context(), sessionID, req.Message)
	} else {
		reply, err = h.svc.AnswerDirect(r.Context(), sessionID, req.Message)
	}

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ChatResponse{Response: reply.Text, SessionID: sessionID})

	case errors.Is(err, pipeline.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "invalid_request", "message is required")

	case errors.Is(err, knowledge.ErrStoreUnavailable):
		h.logger.Error("knowledge store unavailable", "session_id", sessionID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable",
			"the knowledge base is temporarily unavailable")

	default:
		// Embedding or other provider trouble. The user gets a friendly
		// reply, the log gets the cause.
		h.logger.Error("retrieval failed, serving fallback",
			"session_id", sessionID, "error", err)
		writeJSON(w, http.StatusOK, ChatResponse{
			Response:  pipeline.FallbackRetrieval,
			SessionID: sessionID,
		})
	}
}
