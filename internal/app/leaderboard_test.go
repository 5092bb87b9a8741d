package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-host-service/internal/app"
	"quiz-host-service/internal/domain"
)

func TestBuildLeaderboardKeepsJoinOrderOnTies(t *testing.T) {
	session := domain.GameSession{
		ID:     "ABC123",
		QuizID: "quiz-1",
		Status: domain.StatusActive,
		Players: []domain.Player{
			{ID: "p1", Name: "Alpha", TotalPoints: 500, Answers: []domain.PlayerAnswer{{QuestionIndex: 0, Correct: true, Points: 500}}},
			{ID: "p2", Name: "Beta", TotalPoints: 900, Answers: []domain.PlayerAnswer{{QuestionIndex: 0, Correct: true, Points: 900}}},
			{ID: "p3", Name: "Gamma", TotalPoints: 500, Answers: []domain.PlayerAnswer{{QuestionIndex: 0, Correct: true, Points: 500}}},
			{ID: "p4", Name: "Delta"},
		},
	}

	lb := app.BuildLeaderboard(session)
	want := []string{"p2", "p1", "p3", "p4"}
	for i, id := range want {
		e := lb.Entries[i]
		if e.PlayerID != id || e.Rank != i+1 {
			t.Fatalf("position %d: expected %s rank %d, got %+v", i, id, i+1, e)
		}
	}
	if lb.Entries[3].AnsweredQuestions != 0 || lb.Entries[0].CorrectAnswers != 1 {
		t.Fatalf("unexpected answer counts %+v", lb.Entries)
	}
	if session.Players[0].ID != "p1" {
		t.Fatalf("leaderboard must not reorder the session's players")
	}
}

func TestBuildQuestionResults(t *testing.T) {
	session := domain.GameSession{
		ID: "ABC123",
		Players: []domain.Player{
			{ID: "p1", Name: "Alpha", Answers: []domain.PlayerAnswer{{QuestionIndex: 0, AnswerIndex: 1, Correct: true, Points: 600}}},
			{ID: "p2", Name: "Beta", Answers: []domain.PlayerAnswer{{QuestionIndex: 1, AnswerIndex: 2, Correct: true, Points: 800}}},
			{ID: "p3", Name: "Gamma", Answers: []domain.PlayerAnswer{{QuestionIndex: 0, AnswerIndex: 0, Points: 0, TimeToAnswer: 2}}},
			{ID: "p4", Name: "Delta", Answers: []domain.PlayerAnswer{{QuestionIndex: 0, AnswerIndex: 1, Correct: true, Points: 900}}},
		},
	}

	res := app.BuildQuestionResults(session, 0)
	if res.Responses != 3 || res.CorrectCount != 2 {
		t.Fatalf("expected 3 responses and 2 correct, got %d/%d", res.Responses, res.CorrectCount)
	}
	order := []string{"p4", "p1", "p2", "p3"}
	for i, id := range order {
		if res.Entries[i].PlayerID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, res.Entries[i].PlayerID)
		}
	}
	beta := res.Entries[2]
	if beta.Answered || beta.AnswerIndex != -1 || beta.Points != 0 {
		t.Fatalf("expected beta to be listed as unanswered, got %+v", beta)
	}
}

func TestQuestionResultsAndFinalResults(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	session := mustCreate(t, f, "quiz-3")
	alpha := mustJoin(t, f, session.ID, "Alpha")
	mustStart(t, f, session.ID)
	if _, err := f.service.SubmitAnswer(ctx, session.ID, alpha.ID, 0, 4); err != nil {
		t.Fatalf("submit: %v", err)
	}

	current, err := f.service.QuestionResults(ctx, session.ID, -1)
	if err != nil {
		t.Fatalf("current results: %v", err)
	}
	if current.QuestionIndex != 0 || current.Responses != 1 || current.Entries[0].Points != 800 {
		t.Fatalf("unexpected current results %+v", current)
	}
	if _, err := f.service.QuestionResults(ctx, session.ID, 3); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected out of range index to fail validation, got %v", err)
	}

	if _, err := f.service.FinalResults(ctx, session.ID); !errors.Is(err, domain.ErrSessionNotFinished) {
		t.Fatalf("expected not finished, got %v", err)
	}
	if _, err := f.service.EndSession(ctx, session.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	final, err := f.service.FinalResults(ctx, session.ID)
	if err != nil {
		t.Fatalf("final: %v", err)
	}
	if final.Status != domain.StatusFinished || final.Entries[0].TotalPoints != 800 {
		t.Fatalf("unexpected final results %+v", final)
	}
}

func TestSessionStateHidesAnswerKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	session := mustCreate(t, f, "quiz-3")

	if _, err := f.service.CurrentQuestion(ctx, session.ID); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected no current question in lobby, got %v", err)
	}
	state, err := f.service.SessionState(ctx, session.ID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.CurrentQuestion != nil || state.TotalQuestions != 3 {
		t.Fatalf("unexpected lobby state %+v", state)
	}

	mustStart(t, f, session.ID)
	if _, err := f.service.AdvanceQuestion(ctx, session.ID); err != nil {
		t.Fatalf("advance: %v", err)
	}
	q, err := f.service.CurrentQuestion(ctx, session.ID)
	if err != nil {
		t.Fatalf("current question: %v", err)
	}
	if q.Index != 1 || q.Question != "second" || len(q.Options) != 4 || q.TimeLimit != 20 || q.Points != 1000 {
		t.Fatalf("unexpected public question %+v", q)
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	session := mustCreate(t, f, "quiz-1")

	ch, cancel, err := f.service.Subscribe(ctx, session.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	initial := <-ch
	if initial.Status != domain.StatusWaiting || len(initial.Leaderboard) != 0 {
		t.Fatalf("unexpected initial state %+v", initial)
	}

	mustJoin(t, f, session.ID, "Alpha")
	select {
	case update := <-ch:
		if len(update.Leaderboard) != 1 || update.Leaderboard[0].Name != "Alpha" {
			t.Fatalf("expected alpha in update, got %+v", update.Leaderboard)
		}
		if update.Version <= initial.Version {
			t.Fatalf("expected version to advance, got %d after %d", update.Version, initial.Version)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for update")
	}

	if _, _, err := f.service.Subscribe(ctx, "NOPE99"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected subscribe to unknown session to fail, got %v", err)
	}
}
