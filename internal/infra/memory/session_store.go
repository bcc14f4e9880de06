package memory

import (
	"context"
	"sync"

	"quiz-session-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository with
// a monotonic id source shared by sessions and players.
type SessionStore struct {
	mu       sync.RWMutex
	lastID   int64
	sessions map[int64]*app.Session
	byPlayer map[int64]int64
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]*app.Session),
		byPlayer: make(map[int64]int64),
	}
}

func (s *SessionStore) NextID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	return s.lastID, nil
}

func (s *SessionStore) Add(_ context.Context, session *app.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
	return nil
}

func (s *SessionStore) Get(_ context.Context, sessionID int64) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) GetByPlayer(_ context.Context, playerID int64) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) All(_ context.Context) []*app.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*app.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		all = append(all, session)
	}
	return all
}

// Save refreshes the player index. Sessions are live aggregates here, so
// there is no snapshot to persist.
func (s *SessionStore) Save(_ context.Context, session *app.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, playerID := range session.PlayerIDs() {
		s.byPlayer[playerID] = session.ID()
	}
	return nil
}
