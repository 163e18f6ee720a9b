package pipeline

import (
	"sync"

	"github.com/aadityasp/agreegraph/models"
)

// SessionStore keeps completed and in-flight run state in memory, keyed by
// session ID. Resetting a session drops its state but never touches the
// shared cache or the durable graph store.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.PipelineState
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*models.PipelineState)}
}

func (s *SessionStore) Save(state *models.PipelineState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.SessionID] = state
}

func (s *SessionStore) Get(sessionID string) (*models.PipelineState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionID]
	return state, ok
}

func (s *SessionStore) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
