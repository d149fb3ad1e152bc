package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hireflow/interview-core/internal/server/handler"
)

// NewRouter creates and configures the HTTP router with middleware and API
// routes.
func NewRouter(h *handler.InterviewHandler, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/interviews", h.Schedule)
		r.Get("/interviews/{id}", h.Get)
		r.Get("/interviews/{id}/transitions", h.Transitions)
		r.Post("/interviews/{id}/broadcast", h.Broadcast)
		r.Post("/interviews/{id}/rebroadcast", h.Rebroadcast)
		r.Post("/interviews/{id}/cancel", h.Cancel)
		r.Post("/interviews/{id}/complete", h.Complete)
		r.Post("/invites/respond/{token}", h.Respond)
		r.Get("/tasks", h.RecentTasks)
	})

	return r
}
