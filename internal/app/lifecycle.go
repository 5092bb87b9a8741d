package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"quiz-host-service/internal/domain"
)

// NoMoreQuestions is returned by AdvanceQuestion when the session finished.
const NoMoreQuestions = -1

// CreateSession opens a lobby for the quiz under a freshly generated code.
func (s *GameService) CreateSession(ctx context.Context, quizID string) (domain.GameSession, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.GameSession{}, err
	}
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.newSessionCode()
		if err != nil {
			return domain.GameSession{}, err
		}
		session, err := s.sessions.CreateSession(ctx, newLobby(code, quiz))
		if errors.Is(err, domain.ErrSessionExists) {
			continue
		}
		if err != nil {
			return domain.GameSession{}, err
		}
		s.logCreated(session)
		return session, nil
	}
	return domain.GameSession{}, fmt.Errorf("allocate session code: %w", domain.ErrSessionExists)
}

// CreateSessionWithID opens a lobby under a caller-supplied, well-known id.
func (s *GameService) CreateSessionWithID(ctx context.Context, sessionID, quizID string) (domain.GameSession, error) {
	sessionID = normalizeSessionID(sessionID)
	if sessionID == "" {
		return s.CreateSession(ctx, quizID)
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.GameSession{}, err
	}
	session, err := s.sessions.CreateSession(ctx, newLobby(sessionID, quiz))
	if err != nil {
		return domain.GameSession{}, err
	}
	s.logCreated(session)
	return session, nil
}

// EnsureSession returns the session with the given id, creating it for the
// quiz when absent. An existing session is returned unchanged.
func (s *GameService) EnsureSession(ctx context.Context, sessionID, quizID string) (domain.GameSession, error) {
	existing, err := s.GetSession(ctx, sessionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return domain.GameSession{}, err
	}
	created, err := s.CreateSessionWithID(ctx, sessionID, quizID)
	if errors.Is(err, domain.ErrSessionExists) {
		return s.GetSession(ctx, sessionID)
	}
	return created, err
}

// StartSession moves the session to active at question 0 and clears every
// player's answers and points. Calling it again restarts the game.
func (s *GameService) StartSession(ctx context.Context, sessionID string) (domain.GameSession, error) {
	session, err := s.update(ctx, sessionID, func(gs *domain.GameSession) error {
		questions, err := s.questionsFor(ctx, *gs)
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			return domain.ErrNoQuestions
		}
		if s.requirePlayers && len(gs.Players) == 0 {
			return domain.ErrNoPlayers
		}
		now := s.now()
		gs.Status = domain.StatusActive
		gs.CurrentQuestionIndex = 0
		gs.StartTime = &now
		for i := range gs.Players {
			gs.Players[i].Answers = []domain.PlayerAnswer{}
			gs.Players[i].TotalPoints = 0
		}
		return nil
	})
	if err != nil {
		return domain.GameSession{}, err
	}
	slog.Info("game session started", "session", session.ID, "players", len(session.Players))
	return session, nil
}

// AdvanceQuestion moves to the next question and returns its index. Past the
// last question the session finishes and NoMoreQuestions is returned.
func (s *GameService) AdvanceQuestion(ctx context.Context, sessionID string) (int, error) {
	next := NoMoreQuestions
	session, err := s.update(ctx, sessionID, func(gs *domain.GameSession) error {
		if gs.Status != domain.StatusActive {
			return domain.ErrSessionNotActive
		}
		questions, err := s.questionsFor(ctx, *gs)
		if err != nil {
			return err
		}
		candidate := gs.CurrentQuestionIndex + 1
		if candidate >= len(questions) {
			next = NoMoreQuestions
			gs.Status = domain.StatusFinished
			return nil
		}
		next = candidate
		gs.CurrentQuestionIndex = candidate
		return nil
	})
	if err != nil {
		return 0, err
	}
	if next == NoMoreQuestions {
		slog.Info("game session finished", "session", session.ID, "reason", "questions exhausted")
	}
	return next, nil
}

// EndSession forces the session to finished from any state.
func (s *GameService) EndSession(ctx context.Context, sessionID string) (domain.GameSession, error) {
	session, err := s.update(ctx, sessionID, func(gs *domain.GameSession) error {
		if gs.Status == domain.StatusFinished {
			return errUnchanged
		}
		gs.Status = domain.StatusFinished
		return nil
	})
	if err != nil {
		return domain.GameSession{}, err
	}
	slog.Info("game session ended", "session", session.ID)
	return session, nil
}

// DiscardSession deletes the session record.
func (s *GameService) DiscardSession(ctx context.Context, sessionID string) error {
	return s.sessions.DeleteSession(ctx, normalizeSessionID(sessionID))
}

func newLobby(id string, quiz domain.Quiz) domain.GameSession {
	snapshot := make([]domain.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		q.Options = append([]string(nil), q.Options...)
		snapshot[i] = q
	}
	return domain.GameSession{
		ID:                   id,
		QuizID:               quiz.ID,
		Players:              []domain.Player{},
		CurrentQuestionIndex: -1,
		Status:               domain.StatusWaiting,
		SelectedQuestions:    snapshot,
	}
}

func (s *GameService) logCreated(session domain.GameSession) {
	slog.Info("game session created", "session", session.ID, "quiz", session.QuizID, "questions", len(session.SelectedQuestions))
}
