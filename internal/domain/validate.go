package domain

import (
	"fmt"
	"strings"
)

// Validate checks a single question definition.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return &ValidationError{Field: "question", Reason: "prompt is required"}
	}
	if len(q.Options) < MinOptions {
		return &ValidationError{Field: "options", Reason: fmt.Sprintf("need at least %d options, got %d", MinOptions, len(q.Options))}
	}
	if len(q.Options) > MaxOptions {
		return &ValidationError{Field: "options", Reason: fmt.Sprintf("at most %d options allowed, got %d", MaxOptions, len(q.Options))}
	}
	for i, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return &ValidationError{Field: fmt.Sprintf("options[%d]", i), Reason: "option text is required"}
		}
	}
	if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
		return &ValidationError{Field: "correctOptionIndex", Reason: fmt.Sprintf("%d is not an option index", q.CorrectOptionIndex)}
	}
	if q.TimeLimit < 0 {
		return &ValidationError{Field: "timeLimit", Reason: "must not be negative"}
	}
	if q.Points < 0 {
		return &ValidationError{Field: "points", Reason: "must not be negative"}
	}
	return nil
}

// Validate checks a quiz draft before it is stored.
func (d QuizDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return &ValidationError{Field: "title", Reason: "title is required"}
	}
	if len(d.Questions) == 0 {
		return &ValidationError{Field: "questions", Reason: "a quiz needs at least one question"}
	}
	for i, q := range d.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}
