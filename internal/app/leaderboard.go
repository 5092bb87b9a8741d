package app

import (
	"context"
	"fmt"
	"sort"

	"quiz-host-service/internal/domain"
)

// Leaderboard returns the overall standings of a session.
func (s *GameService) Leaderboard(ctx context.Context, sessionID string) (domain.Leaderboard, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return BuildLeaderboard(session), nil
}

// FinalResults returns the standings of a finished session.
func (s *GameService) FinalResults(ctx context.Context, sessionID string) (domain.Leaderboard, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if session.Status != domain.StatusFinished {
		return domain.Leaderboard{}, domain.ErrSessionNotFinished
	}
	return BuildLeaderboard(session), nil
}

// QuestionResults summarizes one question; a negative index means the
// current question.
func (s *GameService) QuestionResults(ctx context.Context, sessionID string, questionIndex int) (domain.QuestionResults, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return domain.QuestionResults{}, err
	}
	if questionIndex < 0 {
		questionIndex = session.CurrentQuestionIndex
	}
	questions, err := s.questionsFor(ctx, session)
	if err != nil {
		return domain.QuestionResults{}, err
	}
	if questionIndex < 0 || questionIndex >= len(questions) {
		return domain.QuestionResults{}, &domain.ValidationError{
			Field:  "questionIndex",
			Reason: fmt.Sprintf("%d is outside 0..%d", questionIndex, len(questions)-1),
		}
	}
	return BuildQuestionResults(session, questionIndex), nil
}

// BuildLeaderboard ranks players by total points, keeping join order on ties.
func BuildLeaderboard(session domain.GameSession) domain.Leaderboard {
	players := append([]domain.Player(nil), session.Players...)
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].TotalPoints > players[j].TotalPoints
	})

	entries := make([]domain.LeaderboardEntry, 0, len(players))
	for i := range players {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:              i + 1,
			PlayerID:          players[i].ID,
			Name:              players[i].Name,
			TotalPoints:       players[i].TotalPoints,
			CorrectAnswers:    players[i].CorrectAnswers(),
			AnsweredQuestions: len(players[i].Answers),
		})
	}
	return domain.Leaderboard{
		SessionID: session.ID,
		QuizID:    session.QuizID,
		Status:    session.Status,
		Entries:   entries,
	}
}

// BuildQuestionResults breaks one question down per player, best first.
func BuildQuestionResults(session domain.GameSession, questionIndex int) domain.QuestionResults {
	res := domain.QuestionResults{
		SessionID:     session.ID,
		QuestionIndex: questionIndex,
		Entries:       make([]domain.QuestionResultEntry, 0, len(session.Players)),
	}
	for i := range session.Players {
		p := &session.Players[i]
		entry := domain.QuestionResultEntry{PlayerID: p.ID, Name: p.Name, AnswerIndex: -1}
		if a, ok := p.AnswerFor(questionIndex); ok {
			res.Responses++
			if a.Correct {
				res.CorrectCount++
			}
			entry.Answered = true
			entry.AnswerIndex = a.AnswerIndex
			entry.Correct = a.Correct
			entry.Points = a.Points
			entry.TimeToAnswer = a.TimeToAnswer
		}
		res.Entries = append(res.Entries, entry)
	}
	sort.SliceStable(res.Entries, func(i, j int) bool {
		return res.Entries[i].Points > res.Entries[j].Points
	})
	return res
}

// BuildSessionState projects a session for clients. The current question is
// exposed without its correct option.
func BuildSessionState(session domain.GameSession, questions []domain.Question) domain.SessionState {
	state := domain.SessionState{
		SessionID:            session.ID,
		QuizID:               session.QuizID,
		Status:               session.Status,
		CurrentQuestionIndex: session.CurrentQuestionIndex,
		TotalQuestions:       len(questions),
		Leaderboard:          BuildLeaderboard(session).Entries,
		Version:              session.Version,
	}
	idx := session.CurrentQuestionIndex
	if session.Status == domain.StatusActive && idx >= 0 && idx < len(questions) {
		q := questions[idx]
		state.CurrentQuestion = &domain.PublicQuestion{
			Index:     idx,
			Question:  q.Question,
			Options:   append([]string(nil), q.Options...),
			TimeLimit: q.TimeLimitSeconds(),
			Points:    q.MaxPoints(),
			Image:     q.Image,
		}
	}
	return state
}
