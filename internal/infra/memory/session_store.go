package memory

import (
	"context"
	"sync"

	"trivia-quiz-service/internal/app"
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

func (s *SessionStore) GetOrCreate(identityID string, create func() *app.Session) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[identityID]; ok {
		return session
	}
	session := create()
	s.sessions[identityID] = session
	return session
}

func (s *SessionStore) Get(identityID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[identityID]
	return session, ok
}

func (s *SessionStore) DeleteIfUnused(identityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[identityID]
	if !ok {
		return
	}
	if session.Unused() {
		delete(s.sessions, identityID)
	}
}

func (s *SessionStore) Live(_ context.Context, identityID string) (bool, error) {
	_, ok := s.Get(identityID)
	return ok, nil
}
