package app

import (
	"context"
	"log/slog"
	"strings"

	"quiz-host-service/internal/domain"
)

// JoinSession admits a player (team) by name. Joining again with the same
// name, in any letter case, returns the existing player and keeps its score.
// Late joins after the game started are allowed.
func (s *GameService) JoinSession(ctx context.Context, sessionID, playerName string) (domain.Player, error) {
	name := strings.TrimSpace(playerName)
	if name == "" {
		return domain.Player{}, &domain.ValidationError{Field: "name", Reason: "player name is required"}
	}

	var joined domain.Player
	var created bool
	session, err := s.update(ctx, sessionID, func(gs *domain.GameSession) error {
		if existing, ok := gs.PlayerByName(name); ok {
			joined, created = existing, false
			return errUnchanged
		}
		joined = domain.Player{
			ID:      s.newPlayerID(),
			Name:    name,
			Answers: []domain.PlayerAnswer{},
		}
		created = true
		gs.Players = append(gs.Players, joined)
		return nil
	})
	if err != nil {
		return domain.Player{}, err
	}
	if created {
		slog.Info("player joined", "session", session.ID, "player", joined.ID, "name", joined.Name, "status", session.Status)
	}
	return joined, nil
}

// RemovePlayer deletes a player and their answer history from the session.
func (s *GameService) RemovePlayer(ctx context.Context, sessionID, playerID string) error {
	session, err := s.update(ctx, sessionID, func(gs *domain.GameSession) error {
		idx := gs.PlayerIndex(playerID)
		if idx < 0 {
			return domain.ErrPlayerNotFound
		}
		gs.Players = append(gs.Players[:idx], gs.Players[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("player removed", "session", session.ID, "player", playerID)
	return nil
}

// ClearAllPlayers empties the lobby before a fresh run.
func (s *GameService) ClearAllPlayers(ctx context.Context, sessionID string) error {
	_, err := s.update(ctx, sessionID, func(gs *domain.GameSession) error {
		if len(gs.Players) == 0 {
			return errUnchanged
		}
		gs.Players = []domain.Player{}
		return nil
	})
	return err
}
