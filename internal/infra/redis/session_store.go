package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Live sessions stay in a local map so the per-session mutex keeps its
//     run-to-completion guarantees within this process.
//   - Redis holds the whole-session JSON snapshot (replaced on every Save)
//     plus the monotonic id counter, so a restarted instance can rehydrate
//     a session it no longer holds in memory.
//   - Cross-instance player lookup would need a shared player index; the
//     engine assumes one writer per session either way.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration

	mu       sync.RWMutex
	sessions map[int64]*app.Session
	byPlayer map[int64]int64
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[int64]*app.Session),
		byPlayer: make(map[int64]int64),
	}
}

func (s *SessionStore) NextID(ctx context.Context) (int64, error) {
	id, err := s.client.Incr(ctx, "quiz:session:next-id").Result()
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}
	return id, nil
}

func (s *SessionStore) Add(ctx context.Context, session *app.Session) error {
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()
	return s.persist(ctx, session)
}

func (s *SessionStore) Get(ctx context.Context, sessionID int64) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return session, true
	}

	// Rehydrate from the persisted snapshot.
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		return nil, false
	}
	var doc domain.SessionDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok {
		return session, true
	}
	session = app.RestoreSession(doc)
	s.sessions[sessionID] = session
	for _, p := range doc.Players {
		s.byPlayer[p.ID] = sessionID
	}
	return session, true
}

func (s *SessionStore) GetByPlayer(ctx context.Context, playerID int64) (*app.Session, bool) {
	s.mu.RLock()
	sessionID, ok := s.byPlayer[playerID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return s.Get(ctx, sessionID)
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

// Save replaces the persisted snapshot and refreshes the player index.
func (s *SessionStore) Save(ctx context.Context, session *app.Session) error {
	s.mu.Lock()
	for _, playerID := range session.PlayerIDs() {
		s.byPlayer[playerID] = session.ID()
	}
	s.mu.Unlock()
	return s.persist(ctx, session)
}

func (s *SessionStore) persist(ctx context.Context, session *app.Session) error {
	raw, err := json.Marshal(session.Document())
	if err != nil {
		return fmt.Errorf("marshal session %d: %w", session.ID(), err)
	}
	if err := s.client.Set(ctx, s.key(session.ID()), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("persist session %d: %w", session.ID(), err)
	}
	return nil
}

func (s *SessionStore) key(sessionID int64) string {
	return "quiz:session:" + strconv.FormatInt(sessionID, 10)
}
