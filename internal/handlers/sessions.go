package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sf49-studio/designer/internal/orchestrator"
	"github.com/sf49-studio/designer/internal/session"
)

// Orchestrator is the subset of the engine the handlers use.
type Orchestrator interface {
	Process(ctx context.Context, sess *session.Session, userText string) (orchestrator.Result, error)
}

// Handler contains all HTTP handlers
type Handler struct {
	engine   Orchestrator
	sessions *session.Store
	progress *ProgressHub
}

// NewHandler creates a new handler
func NewHandler(engine Orchestrator, sessions *session.Store, progress *ProgressHub) *Handler {
	return &Handler{
		engine:   engine,
		sessions: sessions,
		progress: progress,
	}
}

// sessionResponse is the JSON shape of one session.
type sessionResponse struct {
	SessionID uuid.UUID         `json:"session_id"`
	Messages  []session.Message `json:"messages"`
}

// CreateSession handles POST /v1/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Create()

	log.Info().Str("session_id", sess.ID.String()).Msg("Session created")

	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: sess.ID,
		Messages:  sess.Messages(),
	})
}

// GetSession handles GET /v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: sess.ID,
		Messages:  sess.Messages(),
	})
}

// DeleteSession handles DELETE /v1/sessions/{id}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	h.sessions.Delete(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

// postMessageRequest is the JSON body of a message post.
type postMessageRequest struct {
	Text string `json:"text"`
}

// PostMessage handles POST /v1/sessions/{id}/messages. It blocks until the
// orchestration reaches a terminal Result; progress is available on the
// WebSocket endpoint in the meantime.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeJSONError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := h.engine.Process(r.Context(), sess, req.Text)
	if err != nil {
		// Only one request per session runs at a time; a second one is
		// rejected, not queued.
		writeJSONError(w, http.StatusConflict, "a request is already in progress for this session")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CancelRequest handles POST /v1/sessions/{id}/cancel. It only flags the
// in-flight orchestration; the blocked PostMessage call returns the
// cancelled Result once the engine observes the flag.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}

	sess.RequestCancel()

	log.Info().Str("session_id", sess.ID.String()).Msg("Cancellation requested")

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// session resolves the {id} path variable, writing the error response
// itself when the id is invalid or unknown.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *session.Session {
	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid session id")
		return nil
	}
	sess := h.sessions.Get(id)
	if sess == nil {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return nil
	}
	return sess
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
