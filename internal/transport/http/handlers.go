package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"quiz-host-service/internal/app"
	"quiz-host-service/internal/domain"
)

// API exposes the host and player use cases as JSON endpoints.
type API struct {
	service *app.GameService
}

func NewAPI(service *app.GameService) *API {
	return &API{service: service}
}

type createSessionRequest struct {
	QuizID    string `json:"quizId"`
	SessionID string `json:"sessionId,omitempty"`
}

type joinRequest struct {
	Name string `json:"name"`
}

type answerRequest struct {
	PlayerID     string  `json:"playerId"`
	AnswerIndex  int     `json:"answerIndex"`
	TimeToAnswer float64 `json:"timeToAnswer"`
}

type advanceResponse struct {
	CurrentQuestionIndex int                  `json:"currentQuestionIndex"`
	Finished             bool                 `json:"finished"`
	Status               domain.SessionStatus `json:"status"`
}

func (a *API) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := a.service.ListQuizzes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (a *API) GetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := a.service.GetQuiz(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	var draft domain.QuizDraft
	if err := decodeJSON(r, &draft); err != nil {
		writeError(w, r, err)
		return
	}
	quiz, err := a.service.CreateQuiz(r.Context(), draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (a *API) ListSessions(w http.ResponseWriter, r *http.Request) {
	states, err := a.service.ListSessionStates(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

// CreateSession opens a lobby; an explicit sessionId creates a well-known session.
func (a *API) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.QuizID == "" {
		writeError(w, r, &domain.ValidationError{Field: "quizId", Reason: "quiz id is required"})
		return
	}
	var (
		session domain.GameSession
		err     error
	)
	if req.SessionID != "" {
		session, err = a.service.CreateSessionWithID(r.Context(), req.SessionID, req.QuizID)
	} else {
		session, err = a.service.CreateSession(r.Context(), req.QuizID)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.service.StateOf(r.Context(), session))
}

// GetSession supports cheap polling: ?since=<version> answers 304 when the
// stored version has not moved past it. Sessions are always returned as their
// client view, so the answer key never reaches players.
func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.service.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, &domain.ValidationError{Field: "since", Reason: "must be an integer version"})
			return
		}
		if session.Version <= since {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	writeJSON(w, http.StatusOK, a.service.StateOf(r.Context(), session))
}

func (a *API) DiscardSession(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DiscardSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) SessionState(w http.ResponseWriter, r *http.Request) {
	state, err := a.service.SessionState(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) CurrentQuestion(w http.ResponseWriter, r *http.Request) {
	question, err := a.service.CurrentQuestion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, question)
}

func (a *API) StartSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.service.StartSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.service.StateOf(r.Context(), session))
}

func (a *API) AdvanceQuestion(w http.ResponseWriter, r *http.Request) {
	next, err := a.service.AdvanceQuestion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := advanceResponse{CurrentQuestionIndex: next, Status: domain.StatusActive}
	if next == app.NoMoreQuestions {
		resp.Finished = true
		resp.Status = domain.StatusFinished
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) EndSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.service.EndSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.service.StateOf(r.Context(), session))
}

func (a *API) JoinSession(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	player, err := a.service.JoinSession(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, player)
}

func (a *API) RemovePlayer(w http.ResponseWriter, r *http.Request) {
	if err := a.service.RemovePlayer(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "playerId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) ClearPlayers(w http.ResponseWriter, r *http.Request) {
	if err := a.service.ClearAllPlayers(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	answer, err := a.service.SubmitAnswer(r.Context(), chi.URLParam(r, "id"), req.PlayerID, req.AnswerIndex, req.TimeToAnswer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (a *API) Leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := a.service.Leaderboard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (a *API) FinalResults(w http.ResponseWriter, r *http.Request) {
	lb, err := a.service.FinalResults(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

// QuestionResults accepts a numeric index or "current".
func (a *API) QuestionResults(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "index")
	index := -1
	if raw != "current" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, &domain.ValidationError{Field: "index", Reason: "must be a non-negative integer or \"current\""})
			return
		}
		index = n
	}
	res, err := a.service.QuestionResults(r.Context(), chi.URLParam(r, "id"), index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
