package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is one transcript entry in a session.
type Message struct {
	Role      string    `json:"role"` // user, assistant
	Text      string    `json:"text"`
	ImageURLs []string  `json:"image_urls,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the per-conversation state owned by one UI session.
// The remote conversation is created lazily on the first message; until then
// ConversationID is empty.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	mu              sync.Mutex
	conversationID  string
	messages        []Message
	active          bool
	cancelRequested bool
}

// New creates an empty session.
func New() *Session {
	return &Session{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
	}
}

// ConversationID returns the remote conversation id, or "" if none exists yet.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// SetConversationID records the remote conversation id after lazy creation.
func (s *Session) SetConversationID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationID = id
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Append adds a transcript entry.
func (s *Session) Append(role, text string, imageURLs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{
		Role:      role,
		Text:      text,
		ImageURLs: imageURLs,
		CreatedAt: time.Now(),
	})
}

// BeginRequest marks the session as having an in-flight orchestration and
// clears any stale cancel flag. It fails if a request is already active:
// at most one orchestration runs per session, and a concurrent attempt is
// rejected rather than queued or interleaved.
func (s *Session) BeginRequest() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return fmt.Errorf("session %s already has a request in flight", s.ID)
	}
	s.active = true
	s.cancelRequested = false
	return nil
}

// EndRequest clears the in-flight marker.
func (s *Session) EndRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// Active reports whether an orchestration is in flight.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// RequestCancel flags the in-flight orchestration for cancellation. The
// engine observes the flag at its next checkpoint; cancellation is
// cooperative, not immediate.
func (s *Session) RequestCancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelRequested = true
}

// CancelRequested reports whether cancellation has been requested.
func (s *Session) CancelRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelRequested
}

// Store is an in-memory session registry. Sessions live for the process
// lifetime; nothing is persisted.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[uuid.UUID]*Session)}
}

// Create creates and registers a new session.
func (st *Store) Create() *Session {
	s := New()
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns the session with the given id, or nil if unknown.
func (st *Store) Get(id uuid.UUID) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[id]
}

// Delete removes a session from the store.
func (st *Store) Delete(id uuid.UUID) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}
