package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sf49-studio/designer/internal/orchestrator"
)

var progressUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ProgressHub fans progress events out to WebSocket subscribers, keyed by
// session id. It implements orchestrator.ProgressSink. Events are cosmetic:
// a subscriber that cannot keep up has events dropped rather than ever
// slowing the engine down.
type ProgressHub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID][]chan orchestrator.ProgressEvent
}

// NewProgressHub creates an empty hub.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{subs: make(map[uuid.UUID][]chan orchestrator.ProgressEvent)}
}

// Publish implements orchestrator.ProgressSink. It never blocks.
func (h *ProgressHub) Publish(ev orchestrator.ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// subscribe registers a buffered channel for a session's events.
func (h *ProgressHub) subscribe(sessionID uuid.UUID) chan orchestrator.ProgressEvent {
	ch := make(chan orchestrator.ProgressEvent, 16)
	h.mu.Lock()
	h.subs[sessionID] = append(h.subs[sessionID], ch)
	h.mu.Unlock()
	return ch
}

// unsubscribe removes a previously registered channel.
func (h *ProgressHub) unsubscribe(sessionID uuid.UUID, ch chan orchestrator.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	chans := h.subs[sessionID]
	for i, c := range chans {
		if c == ch {
			h.subs[sessionID] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(h.subs[sessionID]) == 0 {
		delete(h.subs, sessionID)
	}
}

// ProgressWS handles GET /v1/sessions/{id}/progress — a WebSocket stream of
// progress events for the session's in-flight orchestration.
func (h *Handler) ProgressWS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID, err := uuid.Parse(vars["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if h.sessions.Get(sessionID) == nil {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := progressUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("progress ws upgrade failed")
		return
	}
	defer conn.Close()

	events := h.progress.subscribe(sessionID)
	defer h.progress.unsubscribe(sessionID, events)

	// Drain reads so close frames and pings are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Str("session_id", sessionID.String()).Msg("progress ws write failed")
				return
			}
		}
	}
}
