package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quiz-host-service/internal/domain"
	"quiz-host-service/internal/infra/memory"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr := startMiniredis(t)
	client := newClient(mr)

	source := &countingSource{QuizCatalog: memory.NewQuizCatalog(sampleQuiz())}
	repo := NewQuizRepository(client, source, time.Minute)

	quiz, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if source.loads() != 1 {
		t.Fatalf("expected loader called once, got %d", source.loads())
	}
	if len(quiz.Questions) != 1 || quiz.Questions[0].CorrectOptionIndex != 1 {
		t.Fatalf("unexpected quiz %+v", quiz)
	}
	if !mr.Exists("quiz:def:quiz-1") {
		t.Fatalf("expected quiz cached in redis")
	}
	if ttl := mr.TTL("quiz:def:quiz-1"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl within jitter bounds, got %v", ttl)
	}

	// Second call should hit cache, loader not incremented.
	_, _ = repo.GetQuiz(context.Background(), "quiz-1")
	if source.loads() != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", source.loads())
	}
}

func TestQuizRepositoryReloadsCorruptCache(t *testing.T) {
	mr := startMiniredis(t)
	client := newClient(mr)
	source := &countingSource{QuizCatalog: memory.NewQuizCatalog(sampleQuiz())}
	repo := NewQuizRepository(client, source, time.Minute)

	if err := mr.Set("quiz:def:quiz-1", "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}
	quiz, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if quiz.ID != "quiz-1" || source.loads() != 1 {
		t.Fatalf("expected reload from source, got %+v after %d loads", quiz, source.loads())
	}
	raw, _ := mr.Get("quiz:def:quiz-1")
	if raw == "{not json" {
		t.Fatalf("expected corrupt entry to be replaced")
	}
}

func TestQuizRepositoryNotFound(t *testing.T) {
	mr := startMiniredis(t)
	repo := NewQuizRepository(newClient(mr), memory.NewQuizCatalog(), time.Minute)
	if _, err := repo.GetQuiz(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
	if mr.Exists("quiz:def:missing") {
		t.Fatalf("misses must not be cached")
	}
}

func TestQuizRepositoryCreateQuiz(t *testing.T) {
	mr := startMiniredis(t)
	catalog := memory.NewQuizCatalog()
	repo := NewQuizRepository(newClient(mr), catalog, time.Minute)

	quiz, err := repo.CreateQuiz(context.Background(), domain.QuizDraft{
		Title:     "Security",
		Questions: []domain.Question{{Question: "What is phishing?", Options: []string{"A virus", "A scam"}, CorrectOptionIndex: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists("quiz:def:" + quiz.ID) {
		t.Fatalf("expected created quiz to be cached")
	}
	if _, err := catalog.LoadQuiz(context.Background(), quiz.ID); err != nil {
		t.Fatalf("expected quiz saved to source: %v", err)
	}
	list, err := repo.ListQuizzes(context.Background())
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one listed quiz, got %d (%v)", len(list), err)
	}
}

type countingSource struct {
	*memory.QuizCatalog
	mu    sync.Mutex
	calls int
}

func (s *countingSource) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.QuizCatalog.LoadQuiz(ctx, quizID)
}

func (s *countingSource) loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestQuizCacheDoesNotCollideWithSessionKeys(t *testing.T) {
	mr := startMiniredis(t)
	client := newClient(mr)
	ctx := context.Background()

	sessions := NewSessionStore(client, time.Minute)
	if _, err := sessions.CreateSession(ctx, domain.GameSession{ID: "ABC123", QuizID: "sessions", Status: domain.StatusWaiting, CurrentQuestionIndex: -1}); err != nil {
		t.Fatalf("create session: %v", err)
	}

	quiz := sampleQuiz()
	quiz.ID = "sessions"
	repo := NewQuizRepository(client, memory.NewQuizCatalog(quiz), time.Minute)
	if _, err := repo.GetQuiz(ctx, "sessions"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if !mr.Exists("quiz:def:sessions") {
		t.Fatalf("expected quiz cached under its own prefix")
	}

	list, err := sessions.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list sessions after caching quiz: %v", err)
	}
	if len(list) != 1 || list[0].ID != "ABC123" {
		t.Fatalf("session index damaged: %+v", list)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Warmup",
		Questions: []domain.Question{{
			Question:           "What is 2 + 2?",
			Options:            []string{"3", "4", "5", "22"},
			CorrectOptionIndex: 1,
		}},
	}
}

func startMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
