package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xavierca1/prospect-agent/internal/infra/http/handlers"
	"github.com/xavierca1/prospect-agent/internal/infra/http/middleware"
)

type Handlers struct {
	Health *handlers.HealthHandler
	Runs   *handlers.RunHandler
	Stats  *handlers.StatsHandler
}

// New builds the operator API served by `agent serve`.
func New(h Handlers, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", h.Health.Handle)
	r.Get("/contacts/stats", h.Stats.Handle)
	r.Post("/runs", h.Runs.RunAll)
	r.Post("/runs/{stage}", h.Runs.RunStage)
	r.Post("/reclaim", h.Runs.Reclaim)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
