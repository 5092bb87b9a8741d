package app

import (
	"context"
	crand "crypto/rand"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"quiz-host-service/internal/domain"
)

const (
	defaultMaxUpdateRetries = 8
	maxCodeAttempts         = 16

	retryBaseDelay = time.Millisecond
	retryMaxDelay  = 50 * time.Millisecond
)

// errUnchanged lets a mutation report that nothing needs to be written.
var errUnchanged = errors.New("session unchanged")

// GameService contains the host/player game use cases.
type GameService struct {
	sessions SessionStore
	quizzes  QuizRepository
	notifier Notifier

	now            func() time.Time
	newPlayerID    func() string
	newSessionCode func() (string, error)
	requirePlayers bool
	maxRetries     int
}

// Option customizes a GameService.
type Option func(*GameService)

// WithNotifier replaces the in-process broadcaster (e.g. with a Redis-backed one).
func WithNotifier(n Notifier) Option {
	return func(s *GameService) { s.notifier = n }
}

// WithClock allows deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(s *GameService) { s.now = now }
}

// WithPlayerIDs overrides player id generation.
func WithPlayerIDs(gen func() string) Option {
	return func(s *GameService) { s.newPlayerID = gen }
}

// WithSessionCodeLength sets the length of generated session codes.
func WithSessionCodeLength(n int) Option {
	return func(s *GameService) {
		s.newSessionCode = func() (string, error) { return generateSessionCode(crand.Reader, n) }
	}
}

// WithRequirePlayers makes StartSession refuse lobbies without players.
func WithRequirePlayers(require bool) Option {
	return func(s *GameService) { s.requirePlayers = require }
}

// WithMaxUpdateRetries sets the base compare-and-swap retry budget per
// operation. Each player in the session adds one more attempt.
func WithMaxUpdateRetries(n int) Option {
	return func(s *GameService) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func NewGameService(sessions SessionStore, quizzes QuizRepository, opts ...Option) *GameService {
	s := &GameService{
		sessions:       sessions,
		quizzes:        quizzes,
		notifier:       NewBroadcaster(),
		now:            time.Now,
		newPlayerID:    uuid.NewString,
		newSessionCode: func() (string, error) { return generateSessionCode(crand.Reader, defaultSessionCodeLength) },
		maxRetries:     defaultMaxUpdateRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListQuizzes returns every stored quiz.
func (s *GameService) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	return s.quizzes.ListQuizzes(ctx)
}

// GetQuiz returns a quiz by id.
func (s *GameService) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

// CreateQuiz validates and stores a new quiz.
func (s *GameService) CreateQuiz(ctx context.Context, draft domain.QuizDraft) (domain.Quiz, error) {
	return s.quizzes.CreateQuiz(ctx, draft)
}

// GetSession returns the freshest stored copy of a session.
func (s *GameService) GetSession(ctx context.Context, sessionID string) (domain.GameSession, error) {
	return s.sessions.GetSession(ctx, normalizeSessionID(sessionID))
}

// ListSessions returns all stored sessions.
func (s *GameService) ListSessions(ctx context.Context) ([]domain.GameSession, error) {
	return s.sessions.ListSessions(ctx)
}

// SessionState returns the client-facing view of a session.
func (s *GameService) SessionState(ctx context.Context, sessionID string) (domain.SessionState, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}
	return s.StateOf(ctx, session), nil
}

// ListSessionStates returns the client-facing view of every stored session.
func (s *GameService) ListSessionStates(ctx context.Context) ([]domain.SessionState, error) {
	sessions, err := s.sessions.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	states := make([]domain.SessionState, len(sessions))
	for i, session := range sessions {
		states[i] = s.StateOf(ctx, session)
	}
	return states, nil
}

// CurrentQuestion returns the question players are answering, without its
// answer key.
func (s *GameService) CurrentQuestion(ctx context.Context, sessionID string) (domain.PublicQuestion, error) {
	state, err := s.SessionState(ctx, sessionID)
	if err != nil {
		return domain.PublicQuestion{}, err
	}
	if state.CurrentQuestion == nil {
		return domain.PublicQuestion{}, domain.ErrSessionNotActive
	}
	return *state.CurrentQuestion, nil
}

// Subscribe streams session states, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *GameService) Subscribe(ctx context.Context, sessionID string) (<-chan domain.SessionState, func(), error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	updates, cancelUpdates, err := s.notifier.Subscribe(ctx, session.ID)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan domain.SessionState, 8)
	out <- s.StateOf(ctx, session)

	go func() {
		defer close(out)
		for update := range updates {
			offerLatest(out, s.StateOf(context.Background(), update))
		}
	}()
	return out, cancelUpdates, nil
}

// update applies fn to the freshest copy of the session and writes it back
// with compare-and-swap, re-reading and retrying when another writer won.
// A lost race means some other write succeeded, so the budget grows with the
// number of players who may be writing at the same time.
func (s *GameService) update(ctx context.Context, sessionID string, fn func(*domain.GameSession) error) (domain.GameSession, error) {
	sessionID = normalizeSessionID(sessionID)
	for attempt := 0; ; attempt++ {
		current, err := s.sessions.GetSession(ctx, sessionID)
		if err != nil {
			return domain.GameSession{}, err
		}
		next := current.Clone()
		if err := fn(&next); err != nil {
			if errors.Is(err, errUnchanged) {
				return current, nil
			}
			return domain.GameSession{}, err
		}
		saved, err := s.sessions.CompareAndSwap(ctx, next, current.Version)
		if err == nil {
			s.notifier.Publish(ctx, saved)
			return saved, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) || attempt+1 >= s.maxRetries+len(current.Players) {
			return domain.GameSession{}, err
		}
		slog.Debug("session write conflict, retrying", "session", sessionID, "attempt", attempt+1)
		if err := sleepBackoff(ctx, attempt); err != nil {
			return domain.GameSession{}, err
		}
	}
}

// sleepBackoff waits a random duration below an exponentially growing cap.
func sleepBackoff(ctx context.Context, attempt int) error {
	ceiling := retryBaseDelay << uint(min(attempt, 6))
	if ceiling > retryMaxDelay {
		ceiling = retryMaxDelay
	}
	timer := time.NewTimer(time.Duration(rand.Int63n(int64(ceiling) + 1)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// questionsFor resolves the authoritative question list of a session: the
// creation-time snapshot, or the live quiz for records that predate it.
func (s *GameService) questionsFor(ctx context.Context, session domain.GameSession) ([]domain.Question, error) {
	if session.SelectedQuestions != nil {
		return session.SelectedQuestions, nil
	}
	quiz, err := s.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return nil, err
	}
	return quiz.Questions, nil
}

// StateOf projects a session for host and player clients. The answer key of
// the live question is never included.
func (s *GameService) StateOf(ctx context.Context, session domain.GameSession) domain.SessionState {
	questions, err := s.questionsFor(ctx, session)
	if err != nil {
		slog.Warn("resolve session questions", "session", session.ID, "quiz", session.QuizID, "error", err)
	}
	return BuildSessionState(session, questions)
}
