package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-host-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore. Records
// are deep-copied on the way in and out so callers never share state.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.GameSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.GameSession),
	}
}

func (s *SessionStore) ListSessions(_ context.Context) ([]domain.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.GameSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *SessionStore) GetSession(_ context.Context, sessionID string) (domain.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *SessionStore) CreateSession(_ context.Context, session domain.GameSession) (domain.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return domain.GameSession{}, domain.ErrSessionExists
	}
	session.Version = 1
	s.sessions[session.ID] = session.Clone()
	return session, nil
}

func (s *SessionStore) PutSession(_ context.Context, session domain.GameSession) (domain.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.Version = s.sessions[session.ID].Version + 1
	s.sessions[session.ID] = session.Clone()
	return session, nil
}

func (s *SessionStore) CompareAndSwap(_ context.Context, session domain.GameSession, expectedVersion int64) (domain.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[session.ID]
	if !ok {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	if current.Version != expectedVersion {
		return domain.GameSession{}, domain.ErrVersionConflict
	}
	session.Version = expectedVersion + 1
	s.sessions[session.ID] = session.Clone()
	return session, nil
}

func (s *SessionStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
