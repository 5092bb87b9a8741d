package app

import (
	"context"
	"fmt"
	"math"

	"quiz-host-service/internal/domain"
)

// ScorePoints returns the points for an answer: the full budget for an
// instant correct answer, decaying linearly to zero at the time limit.
// Late answers are clamped to zero and wrong answers never score.
func ScorePoints(q domain.Question, correct bool, elapsedSeconds float64) int {
	if !correct {
		return 0
	}
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	ratio := math.Min(1, elapsedSeconds/float64(q.TimeLimitSeconds()))
	points := int(math.Round(float64(q.MaxPoints()) * (1 - ratio)))
	if points < 0 {
		return 0
	}
	return points
}

// SubmitAnswer records the player's answer to the current question. A second
// submission for the same question replaces the first in place, and the
// running total is adjusted by the difference.
func (s *GameService) SubmitAnswer(ctx context.Context, sessionID, playerID string, answerIndex int, elapsedSeconds float64) (domain.PlayerAnswer, error) {
	if math.IsNaN(elapsedSeconds) || math.IsInf(elapsedSeconds, 0) {
		return domain.PlayerAnswer{}, fmt.Errorf("%w: elapsed time %v", domain.ErrInvalidAnswer, elapsedSeconds)
	}
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}

	var recorded domain.PlayerAnswer
	_, err := s.update(ctx, sessionID, func(gs *domain.GameSession) error {
		if gs.Status != domain.StatusActive {
			return domain.ErrSessionNotActive
		}
		idx := gs.PlayerIndex(playerID)
		if idx < 0 {
			return domain.ErrPlayerNotFound
		}
		questions, err := s.questionsFor(ctx, *gs)
		if err != nil {
			return err
		}
		qi := gs.CurrentQuestionIndex
		if qi < 0 || qi >= len(questions) {
			return fmt.Errorf("%w: question index %d out of range", domain.ErrInvalidState, qi)
		}
		question := questions[qi]
		if answerIndex < 0 || answerIndex >= len(question.Options) {
			return fmt.Errorf("%w: option %d does not exist", domain.ErrInvalidAnswer, answerIndex)
		}

		correct := answerIndex == question.CorrectOptionIndex
		recorded = domain.PlayerAnswer{
			PlayerID:      playerID,
			QuestionIndex: qi,
			AnswerIndex:   answerIndex,
			TimeToAnswer:  elapsedSeconds,
			Correct:       correct,
			Points:        ScorePoints(question, correct, elapsedSeconds),
		}
		recordAnswer(&gs.Players[idx], recorded)
		return nil
	})
	if err != nil {
		return domain.PlayerAnswer{}, err
	}
	return recorded, nil
}

// recordAnswer keeps at most one answer per question and TotalPoints equal
// to the sum of the remaining answers' points.
func recordAnswer(p *domain.Player, answer domain.PlayerAnswer) {
	for i := range p.Answers {
		if p.Answers[i].QuestionIndex == answer.QuestionIndex {
			p.TotalPoints += answer.Points - p.Answers[i].Points
			p.Answers[i] = answer
			return
		}
	}
	p.Answers = append(p.Answers, answer)
	p.TotalPoints += answer.Points
}
