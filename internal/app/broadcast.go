package app

import (
	"context"
	"sync"

	"quiz-host-service/internal/domain"
)

// Broadcaster is the in-process Notifier. Each subscriber gets a small
// buffered channel; when it is full the oldest pending update is dropped so
// slow clients never block writers and always end up with the latest state.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.GameSession]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[string]map[chan domain.GameSession]struct{})}
}

func (b *Broadcaster) Publish(_ context.Context, session domain.GameSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers[session.ID] {
		offerLatest(ch, session.Clone())
	}
}

func (b *Broadcaster) Subscribe(_ context.Context, sessionID string) (<-chan domain.GameSession, func(), error) {
	ch := make(chan domain.GameSession, 8)

	b.mu.Lock()
	subs, ok := b.subscribers[sessionID]
	if !ok {
		subs = make(map[chan domain.GameSession]struct{})
		b.subscribers[sessionID] = subs
	}
	subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs, ok := b.subscribers[sessionID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(b.subscribers, sessionID)
		}
	}
	return ch, cancel, nil
}

// offerLatest delivers v, evicting the oldest buffered value if needed.
func offerLatest[T any](ch chan T, v T) {
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
