package app

import (
	"context"
	crand "crypto/rand"
	"errors"
	"testing"
	"testing/iotest"

	"quiz-host-service/internal/domain"
)

func TestBroadcasterDropsStaleUpdates(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel, err := b.Subscribe(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	for v := int64(1); v <= 20; v++ {
		b.Publish(context.Background(), domain.GameSession{ID: "ABC123", Version: v})
	}
	b.Publish(context.Background(), domain.GameSession{ID: "OTHER1", Version: 99})

	var last int64
	for len(ch) > 0 {
		last = (<-ch).Version
	}
	if last != 20 {
		t.Fatalf("expected latest version 20 to survive, got %d", last)
	}
}

func TestBroadcasterCancelClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel, _ := b.Subscribe(context.Background(), "ABC123")
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	b.Publish(context.Background(), domain.GameSession{ID: "ABC123"})
	if len(b.subscribers) != 0 {
		t.Fatalf("expected subscriber map to be cleaned up")
	}
}

func TestGenerateSessionCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := generateSessionCode(crand.Reader, 6)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("unexpected code %q", code)
		}
		for _, c := range code {
			if c == 'O' || c == '0' || c == 'I' || c == '1' {
				t.Fatalf("ambiguous character in %q", code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Fatalf("codes are not random enough: %d unique of 50", len(seen))
	}
	if normalizeSessionID("  itquiz ") != "ITQUIZ" {
		t.Fatalf("expected normalization to upper case")
	}
}

func TestGenerateSessionCodeReportsEntropyFailure(t *testing.T) {
	broken := errors.New("entropy unavailable")
	code, err := generateSessionCode(iotest.ErrReader(broken), 6)
	if !errors.Is(err, broken) {
		t.Fatalf("expected entropy error, got %v", err)
	}
	if code != "" {
		t.Fatalf("expected no code on failure, got %q", code)
	}
}

func TestCreateSessionFailsWithoutEntropy(t *testing.T) {
	broken := errors.New("entropy unavailable")
	s := &GameService{
		quizzes: stubQuizzes{quiz: domain.Quiz{ID: "quiz-1"}},
		newSessionCode: func() (string, error) {
			return generateSessionCode(iotest.ErrReader(broken), 6)
		},
	}
	if _, err := s.CreateSession(context.Background(), "quiz-1"); !errors.Is(err, broken) {
		t.Fatalf("expected create to surface entropy error, got %v", err)
	}
}

type stubQuizzes struct {
	quiz domain.Quiz
}

func (q stubQuizzes) ListQuizzes(context.Context) ([]domain.Quiz, error) {
	return []domain.Quiz{q.quiz}, nil
}

func (q stubQuizzes) GetQuiz(context.Context, string) (domain.Quiz, error) {
	return q.quiz, nil
}

func (q stubQuizzes) CreateQuiz(context.Context, domain.QuizDraft) (domain.Quiz, error) {
	return q.quiz, nil
}
