package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"quiz-host-service/internal/app"
)

// NewRouter wires the REST API and the websocket endpoint.
func NewRouter(service *app.GameService) http.Handler {
	api := NewAPI(service)
	ws := NewWSHandler(service)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)

	r.Route("/quizzes", func(r chi.Router) {
		r.Get("/", api.ListQuizzes)
		r.Post("/", api.CreateQuiz)
		r.Get("/{id}", api.GetQuiz)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", api.ListSessions)
		r.Post("/", api.CreateSession)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", api.GetSession)
			r.Delete("/", api.DiscardSession)
			r.Get("/state", api.SessionState)
			r.Get("/question", api.CurrentQuestion)
			r.Post("/start", api.StartSession)
			r.Post("/advance", api.AdvanceQuestion)
			r.Post("/end", api.EndSession)

			r.Post("/players", api.JoinSession)
			r.Delete("/players", api.ClearPlayers)
			r.Delete("/players/{playerId}", api.RemovePlayer)

			r.Post("/answers", api.SubmitAnswer)

			r.Get("/leaderboard", api.Leaderboard)
			r.Get("/results", api.FinalResults)
			r.Get("/questions/{index}/results", api.QuestionResults)
		})
	})
	return r
}
