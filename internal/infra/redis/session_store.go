package redis

import (
	"context"
	"sync"
	"time"

	"careerprep/internal/app"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions own a live countdown goroutine, so they stay in a local map.
//   - Redis marks which users have a live quiz on this instance so a load
//     balancer or admin tool can find them; the marker expires with the TTL
//     unless quiz activity touches it.
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

func (s *SessionStore) GetOrCreate(userID string, create func(string) *app.Session) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[userID]; ok {
		return session
	}
	session := create(userID)
	s.sessions[userID] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(userID), "1", s.ttl).Err()
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
	_ = s.client.Del(context.Background(), s.key(userID)).Err()
	return session, true
}

// Touch pushes the marker's expiry out by the TTL while the session is held here.
func (s *SessionStore) Touch(ctx context.Context, userID string) {
	if _, ok := s.Get(userID); !ok {
		return
	}
	_ = s.client.Set(ctx, s.key(userID), "1", s.ttl).Err()
}

// Live reports whether any instance holds a session for userID.
func (s *SessionStore) Live(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SessionStore) key(userID string) string {
	return "quiz:session:" + userID
}
