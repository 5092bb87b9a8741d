package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-host-service/internal/domain"
)

// SessionStore keeps each game session as a JSONB document with the version
// held in its own column so CompareAndSwap is a single conditional UPDATE.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) ListSessions(ctx context.Context) ([]domain.GameSession, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, version, data FROM game_sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.GameSession{}
	for rows.Next() {
		session, err := scanSession(rows)
		if errors.Is(err, errCorruptRecord) {
			slog.Warn("skipping corrupt session row", "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (domain.GameSession, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, version, data FROM game_sessions WHERE id=$1`, sessionID)
	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	if errors.Is(err, errCorruptRecord) {
		slog.Warn("treating corrupt session row as absent", "session", sessionID, "error", err)
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.GameSession{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func (s *SessionStore) CreateSession(ctx context.Context, session domain.GameSession) (domain.GameSession, error) {
	session.Version = 1
	data, err := json.Marshal(session)
	if err != nil {
		return domain.GameSession{}, fmt.Errorf("marshal session: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO game_sessions (id, quiz_id, status, version, data, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, now())
		ON CONFLICT (id) DO NOTHING`,
		session.ID, session.QuizID, string(session.Status), session.Version, string(data))
	if err != nil {
		return domain.GameSession{}, fmt.Errorf("create session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.GameSession{}, domain.ErrSessionExists
	}
	return session, nil
}

// PutSession replaces the record unconditionally, bumping its version.
func (s *SessionStore) PutSession(ctx context.Context, session domain.GameSession) (domain.GameSession, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.GameSession{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var current int64
	err = tx.QueryRow(ctx, `SELECT version FROM game_sessions WHERE id=$1 FOR UPDATE`, session.ID).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return domain.GameSession{}, fmt.Errorf("lock session: %w", err)
	}
	session.Version = current + 1

	data, err := json.Marshal(session)
	if err != nil {
		return domain.GameSession{}, fmt.Errorf("marshal session: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO game_sessions (id, quiz_id, status, version, data, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, now())
		ON CONFLICT (id) DO UPDATE SET
			quiz_id = EXCLUDED.quiz_id,
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`,
		session.ID, session.QuizID, string(session.Status), session.Version, string(data))
	if err != nil {
		return domain.GameSession{}, fmt.Errorf("put session: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.GameSession{}, fmt.Errorf("commit: %w", err)
	}
	return session, nil
}

func (s *SessionStore) CompareAndSwap(ctx context.Context, session domain.GameSession, expectedVersion int64) (domain.GameSession, error) {
	session.Version = expectedVersion + 1
	data, err := json.Marshal(session)
	if err != nil {
		return domain.GameSession{}, fmt.Errorf("marshal session: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE game_sessions
		SET quiz_id = $2, status = $3, version = $4, data = $5::jsonb, updated_at = now()
		WHERE id = $1 AND version = $6`,
		session.ID, session.QuizID, string(session.Status), session.Version, string(data), expectedVersion)
	if err != nil {
		return domain.GameSession{}, fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return session, nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM game_sessions WHERE id=$1)`, session.ID).Scan(&exists); err != nil {
		return domain.GameSession{}, fmt.Errorf("check session: %w", err)
	}
	if !exists {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	return domain.GameSession{}, domain.ErrVersionConflict
}

func (s *SessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM game_sessions WHERE id=$1`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// scanSession trusts the version column over the one embedded in data.
func scanSession(row pgx.Row) (domain.GameSession, error) {
	var (
		id      string
		version int64
		raw     []byte
	)
	if err := row.Scan(&id, &version, &raw); err != nil {
		return domain.GameSession{}, err
	}
	var session domain.GameSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.GameSession{}, fmt.Errorf("%w: session %s: %v", errCorruptRecord, id, err)
	}
	session.ID = id
	session.Version = version
	return session, nil
}
