package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"studio/internal/http/handlers"
	"studio/internal/middleware"
)

func NewRouter(app *handlers.App, logger zerolog.Logger, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.CORS(allowedOrigins),
		middleware.Logger(logger),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/generations", func(r chi.Router) {
		r.Use(middleware.TeamID)
		r.Post("/", app.CreateGeneration)
		r.Route("/{id}", func(r chi.Router) {
			r.Post("/render", app.RenderGeneration)
			r.Post("/edits", app.EditGeneration)
			r.Post("/retry", app.RetryGeneration)
			r.Get("/status", app.GenerationStatus)
			r.Get("/history", app.GenerationHistory)
			r.Get("/export", app.ExportGeneration)
			r.Get("/image", app.GenerationImage)
			r.Delete("/", app.DeleteGeneration)
		})
	})

	return r
}
