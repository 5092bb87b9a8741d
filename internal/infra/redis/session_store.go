package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-host-service/internal/domain"
)

const sessionIndexKey = "quiz:sessions"

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// SessionStore keeps each game session as one JSON record:
//
//	SET quiz:session:{id} {json} EX ttl
//	SADD quiz:sessions {id}
//
// CompareAndSwap uses WATCH/MULTI so concurrent writers on other instances
// cannot overwrite each other's changes.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) ListSessions(ctx context.Context) ([]domain.GameSession, error) {
	ids, err := s.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list session ids: %w", err)
	}
	if len(ids) == 0 {
		return []domain.GameSession{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	sessions := make([]domain.GameSession, 0, len(values))
	var stale []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		session, err := decodeSession(raw)
		if err != nil {
			slog.Warn("skipping corrupt session record", "session", ids[i], "error", err)
			continue
		}
		sessions = append(sessions, session)
	}
	if len(stale) > 0 {
		// expired records leave their id behind in the index
		_ = s.client.SRem(ctx, sessionIndexKey, stale...).Err()
	}
	sortSessions(sessions)
	return sessions, nil
}

func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (domain.GameSession, error) {
	return s.get(ctx, s.client, sessionID)
}

func (s *SessionStore) CreateSession(ctx context.Context, session domain.GameSession) (domain.GameSession, error) {
	session.Version = 1
	data, err := json.Marshal(session)
	if err != nil {
		return domain.GameSession{}, fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(session.ID), data, s.ttl).Result()
	if err != nil {
		return domain.GameSession{}, fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return domain.GameSession{}, domain.ErrSessionExists
	}
	if err := s.client.SAdd(ctx, sessionIndexKey, session.ID).Err(); err != nil {
		return domain.GameSession{}, fmt.Errorf("index session: %w", err)
	}
	return session, nil
}

// PutSession is a blind whole-record replace; only the version is read first.
func (s *SessionStore) PutSession(ctx context.Context, session domain.GameSession) (domain.GameSession, error) {
	var saved domain.GameSession
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.get(ctx, tx, session.ID)
		switch {
		case errors.Is(err, domain.ErrSessionNotFound):
			session.Version = 1
		case err != nil:
			return err
		default:
			session.Version = current.Version + 1
		}
		saved = session
		return s.write(ctx, tx, session)
	}, s.key(session.ID))
	if errors.Is(err, redis.TxFailedErr) {
		return domain.GameSession{}, domain.ErrVersionConflict
	}
	if err != nil {
		return domain.GameSession{}, err
	}
	return saved, nil
}

func (s *SessionStore) CompareAndSwap(ctx context.Context, session domain.GameSession, expectedVersion int64) (domain.GameSession, error) {
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.get(ctx, tx, session.ID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return domain.ErrVersionConflict
		}
		session.Version = expectedVersion + 1
		return s.write(ctx, tx, session)
	}, s.key(session.ID))
	if errors.Is(err, redis.TxFailedErr) {
		return domain.GameSession{}, domain.ErrVersionConflict
	}
	if err != nil {
		return domain.GameSession{}, err
	}
	return session, nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(sessionID))
	pipe.SRem(ctx, sessionIndexKey, sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) get(ctx context.Context, c getter, sessionID string) (domain.GameSession, error) {
	raw, err := c.Get(ctx, s.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.GameSession{}, fmt.Errorf("get session: %w", err)
	}
	session, err := decodeSession(raw)
	if err != nil {
		slog.Warn("treating corrupt session record as absent", "session", sessionID, "error", err)
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) write(ctx context.Context, tx *redis.Tx, session domain.GameSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(session.ID), data, s.ttl)
		pipe.SAdd(ctx, sessionIndexKey, session.ID)
		return nil
	})
	return err
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}

func decodeSession(raw string) (domain.GameSession, error) {
	var session domain.GameSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return domain.GameSession{}, err
	}
	return session, nil
}

func sortSessions(sessions []domain.GameSession) {
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
}
