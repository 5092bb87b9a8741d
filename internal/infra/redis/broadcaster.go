package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"quiz-host-service/internal/domain"
)

const subscriberBuffer = 8

// Broadcaster fans session updates out to every instance through Redis pub/sub:
//
//	PUBLISH quiz:session:events:{id} {json}
type Broadcaster struct {
	client *redis.Client
}

func NewBroadcaster(client *redis.Client) *Broadcaster {
	return &Broadcaster{client: client}
}

func (b *Broadcaster) Publish(ctx context.Context, session domain.GameSession) {
	data, err := json.Marshal(session)
	if err != nil {
		slog.Error("marshal session event", "session", session.ID, "error", err)
		return
	}
	if err := b.client.Publish(ctx, b.channel(session.ID), data).Err(); err != nil {
		slog.Warn("publish session event failed", "session", session.ID, "error", err)
	}
}

func (b *Broadcaster) Subscribe(ctx context.Context, sessionID string) (<-chan domain.GameSession, func(), error) {
	pubsub := b.client.Subscribe(ctx, b.channel(sessionID))
	// Wait for the subscription confirmation so no publish is missed after return.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe session %s: %w", sessionID, err)
	}

	out := make(chan domain.GameSession, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var session domain.GameSession
			if err := json.Unmarshal([]byte(msg.Payload), &session); err != nil {
				slog.Warn("dropping corrupt session event", "session", sessionID, "error", err)
				continue
			}
			offerLatest(out, session)
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() { _ = pubsub.Close() })
	}
	return out, cancel, nil
}

func (b *Broadcaster) channel(sessionID string) string {
	return "quiz:session:events:" + sessionID
}

// offerLatest never blocks; when the buffer is full the oldest update is dropped.
func offerLatest(ch chan domain.GameSession, v domain.GameSession) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
