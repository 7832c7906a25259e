package memory

import (
	"context"
	"sync"

	"careerprep/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(userID string, create func(string) *app.Session) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[userID]; ok {
		return session
	}
	session := create(userID)
	s.sessions[userID] = session
	return session
}

func (s *SessionStore) Get(userID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	return session, ok
}

func (s *SessionStore) RemoveIf(userID string, retire func(*app.Session) bool) (*app.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok || !retire(session) {
		return nil, false
	}
	delete(s.sessions, userID)
	return session, true
}

// Touch is a no-op: in-memory sessions live until removed.
func (s *SessionStore) Touch(context.Context, string) {}
