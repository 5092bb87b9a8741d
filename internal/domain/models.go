package domain

import (
	"strings"
	"time"
)

const (
	// DefaultTimeLimit is used when a question has no time limit (seconds).
	DefaultTimeLimit = 20
	// DefaultPoints is the point budget used when a question sets none.
	DefaultPoints = 1000
	// MaxOptions is the number of answer slots a question card offers.
	MaxOptions = 4
	// MinOptions is the smallest playable option list.
	MinOptions = 2
)

// Question models a timed multiple-choice question.
type Question struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex"`
	TimeLimit          int      `json:"timeLimit,omitempty"` // seconds, defaults to 20
	Image              string   `json:"image,omitempty"`
	Points             int      `json:"points,omitempty"` // defaults to 1000
}

// TimeLimitSeconds returns the effective time limit.
func (q Question) TimeLimitSeconds() int {
	if q.TimeLimit <= 0 {
		return DefaultTimeLimit
	}
	return q.TimeLimit
}

// MaxPoints returns the effective point budget.
func (q Question) MaxPoints() int {
	if q.Points <= 0 {
		return DefaultPoints
	}
	return q.Points
}

// Quiz is an immutable, ordered collection of questions.
type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// QuizDraft is the caller-supplied part of a quiz; the repository assigns the rest.
type QuizDraft struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
}

// SessionStatus is the lifecycle state of a game session.
type SessionStatus string

const (
	StatusWaiting  SessionStatus = "waiting"
	StatusActive   SessionStatus = "active"
	StatusFinished SessionStatus = "finished"
)

// PlayerAnswer is a scored answer of one player to one question.
type PlayerAnswer struct {
	PlayerID      string  `json:"playerId"`
	QuestionIndex int     `json:"questionIndex"`
	AnswerIndex   int     `json:"answerIndex"`
	TimeToAnswer  float64 `json:"timeToAnswer"` // seconds
	Correct       bool    `json:"correct"`
	Points        int     `json:"points"`
}

// Player is a participant (a team) in a game session.
type Player struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Answers     []PlayerAnswer `json:"answers"`
	TotalPoints int            `json:"totalPoints"`
}

// AnswerFor returns the player's answer to the given question, if any.
func (p *Player) AnswerFor(questionIndex int) (PlayerAnswer, bool) {
	for _, a := range p.Answers {
		if a.QuestionIndex == questionIndex {
			return a, true
		}
	}
	return PlayerAnswer{}, false
}

// CorrectAnswers counts the player's correct answers.
func (p *Player) CorrectAnswers() int {
	n := 0
	for _, a := range p.Answers {
		if a.Correct {
			n++
		}
	}
	return n
}

// GameSession is the mutable state of one quiz being played.
//
// SelectedQuestions is the question snapshot taken at creation time. A nil
// snapshot marks a legacy record whose questions must be read from the quiz.
// Version is bumped by the store on every write.
type GameSession struct {
	ID                   string        `json:"id"`
	QuizID               string        `json:"quizId"`
	Players              []Player      `json:"players"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	Status               SessionStatus `json:"status"`
	StartTime            *time.Time    `json:"startTime,omitempty"`
	SelectedQuestions    []Question    `json:"selectedQuestions"`
	Version              int64         `json:"version"`
}

// PlayerIndex returns the position of the player in join order, or -1.
func (s *GameSession) PlayerIndex(playerID string) int {
	for i := range s.Players {
		if s.Players[i].ID == playerID {
			return i
		}
	}
	return -1
}

// PlayerByName finds a player by case-insensitive name.
func (s *GameSession) PlayerByName(name string) (Player, bool) {
	for _, p := range s.Players {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Player{}, false
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (s GameSession) Clone() GameSession {
	out := s
	if s.Players != nil {
		out.Players = make([]Player, len(s.Players))
		for i, p := range s.Players {
			cp := p
			if p.Answers != nil {
				cp.Answers = append([]PlayerAnswer(nil), p.Answers...)
			}
			out.Players[i] = cp
		}
	}
	if s.SelectedQuestions != nil {
		out.SelectedQuestions = make([]Question, len(s.SelectedQuestions))
		for i, q := range s.SelectedQuestions {
			cq := q
			cq.Options = append([]string(nil), q.Options...)
			out.SelectedQuestions[i] = cq
		}
	}
	if s.StartTime != nil {
		t := *s.StartTime
		out.StartTime = &t
	}
	return out
}

// LeaderboardEntry is a ranked view of one player's standing.
type LeaderboardEntry struct {
	Rank              int    `json:"rank"`
	PlayerID          string `json:"playerId"`
	Name              string `json:"name"`
	TotalPoints       int    `json:"totalPoints"`
	CorrectAnswers    int    `json:"correctAnswers"`
	AnsweredQuestions int    `json:"answeredQuestions"`
}

// Leaderboard captures the ordered standings of a session.
type Leaderboard struct {
	SessionID string             `json:"sessionId"`
	QuizID    string             `json:"quizId"`
	Status    SessionStatus      `json:"status"`
	Entries   []LeaderboardEntry `json:"entries"`
}

// QuestionResultEntry is one player's outcome on a single question.
type QuestionResultEntry struct {
	PlayerID     string  `json:"playerId"`
	Name         string  `json:"name"`
	Answered     bool    `json:"answered"`
	AnswerIndex  int     `json:"answerIndex"`
	Correct      bool    `json:"correct"`
	Points       int     `json:"points"`
	TimeToAnswer float64 `json:"timeToAnswer"`
}

// QuestionResults summarizes the answers to one question.
type QuestionResults struct {
	SessionID     string                `json:"sessionId"`
	QuestionIndex int                   `json:"questionIndex"`
	Responses     int                   `json:"responses"`
	CorrectCount  int                   `json:"correctCount"`
	Entries       []QuestionResultEntry `json:"entries"`
}

// PublicQuestion is a question as shown to players, without the answer key.
type PublicQuestion struct {
	Index     int      `json:"index"`
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	TimeLimit int      `json:"timeLimit"`
	Points    int      `json:"points"`
	Image     string   `json:"image,omitempty"`
}

// SessionState is the snapshot pushed to host and player clients.
type SessionState struct {
	SessionID            string             `json:"sessionId"`
	QuizID               string             `json:"quizId"`
	Status               SessionStatus      `json:"status"`
	CurrentQuestionIndex int                `json:"currentQuestionIndex"`
	TotalQuestions       int                `json:"totalQuestions"`
	CurrentQuestion      *PublicQuestion    `json:"currentQuestion,omitempty"`
	Leaderboard          []LeaderboardEntry `json:"leaderboard"`
	Version              int64              `json:"version"`
}

// NewQuiz builds a quiz from a validated draft.
func NewQuiz(id string, draft QuizDraft, createdAt time.Time) Quiz {
	questions := make([]Question, len(draft.Questions))
	for i, q := range draft.Questions {
		q.Options = append([]string(nil), q.Options...)
		questions[i] = q
	}
	return Quiz{
		ID:          id,
		Title:       strings.TrimSpace(draft.Title),
		Description: draft.Description,
		Questions:   questions,
		CreatedAt:   createdAt,
	}
}
