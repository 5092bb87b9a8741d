package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Specific errors below wrap one of these so callers can
// branch on the kind with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
)

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrSessionNotFound is returned when a game session id does not resolve.
	ErrSessionNotFound = fmt.Errorf("game session %w", ErrNotFound)
	// ErrPlayerNotFound is returned when a player is not part of the session.
	ErrPlayerNotFound = fmt.Errorf("player %w", ErrNotFound)

	// ErrSessionNotActive is returned for operations that need an active session.
	ErrSessionNotActive = fmt.Errorf("%w: game session is not active", ErrInvalidState)
	// ErrSessionNotFinished is returned when final results are requested too early.
	ErrSessionNotFinished = fmt.Errorf("%w: game session is not finished", ErrInvalidState)
	// ErrNoQuestions is returned when starting a session with an empty question snapshot.
	ErrNoQuestions = fmt.Errorf("%w: game session has no questions", ErrInvalidState)
	// ErrNoPlayers is returned when the start policy requires at least one player.
	ErrNoPlayers = fmt.Errorf("%w: no players to start", ErrInvalidState)

	// ErrSessionExists is returned when creating a session with an id already in use.
	ErrSessionExists = fmt.Errorf("%w: game session already exists", ErrConflict)
	// ErrVersionConflict is returned by stores when a compare-and-swap sees a newer record.
	ErrVersionConflict = fmt.Errorf("%w: game session was modified concurrently", ErrConflict)

	// ErrInvalidAnswer is returned when an answer cannot be scored against the question.
	ErrInvalidAnswer = fmt.Errorf("%w: invalid answer", ErrValidation)
)

// ValidationError reports a malformed quiz definition.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
