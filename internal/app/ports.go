package app

import (
	"context"

	"quiz-host-service/internal/domain"
)

// QuizRepository stores quiz definitions (cached over a backing store).
type QuizRepository interface {
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	CreateQuiz(ctx context.Context, draft domain.QuizDraft) (domain.Quiz, error)
}

// SessionStore abstracts how game sessions are persisted (in-memory, Redis, Postgres).
//
// Every write bumps GameSession.Version. PutSession is a blind whole-record
// replace; CompareAndSwap only writes when the stored version still equals
// expectedVersion and fails with domain.ErrVersionConflict otherwise.
type SessionStore interface {
	ListSessions(ctx context.Context) ([]domain.GameSession, error)
	GetSession(ctx context.Context, sessionID string) (domain.GameSession, error)
	CreateSession(ctx context.Context, session domain.GameSession) (domain.GameSession, error)
	PutSession(ctx context.Context, session domain.GameSession) (domain.GameSession, error)
	CompareAndSwap(ctx context.Context, session domain.GameSession, expectedVersion int64) (domain.GameSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Notifier fans out session changes to interested clients.
// The cancel function returned by Subscribe must be called to avoid leaks.
type Notifier interface {
	Publish(ctx context.Context, session domain.GameSession)
	Subscribe(ctx context.Context, sessionID string) (<-chan domain.GameSession, func(), error)
}
