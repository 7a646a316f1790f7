package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"trivia-quiz-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Live sessions stay in a local map so the in-process broadcast keeps working.
//   - Redis holds a liveness marker per identity, which lets other instances see that a
//     player is connected here. The attempt itself lives in SnapshotStore.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
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
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), liveKey(identityID), "1", s.ttl).Err()
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
		_ = s.client.Del(context.Background(), liveKey(identityID)).Err()
	}
}

// Live reports whether some instance holds a live session for identityID.
func (s *SessionStore) Live(ctx context.Context, identityID string) (bool, error) {
	n, err := s.client.Exists(ctx, liveKey(identityID)).Result()
	return n > 0, err
}

func liveKey(identityID string) string {
	return "quiz:live:" + identityID
}
