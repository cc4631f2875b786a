package routes

import (
	"github.com/go-chi/chi/v5"

	"rubicon/flightlog/internal/api"
	"rubicon/flightlog/internal/metrics"
	"rubicon/flightlog/internal/middleware"
)

// RegisterAPIRoutes registers all API v1 routes and handlers
func RegisterAPIRoutes(r chi.Router, handlers *api.Handlers, limiter *middleware.IPRateLimiter, metricsReg *metrics.Registry) {
	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(middleware.InFlightMiddleware(metricsReg, "api_v1"))

		v1.Get("/imports", handlers.ListImports())
		v1.Get("/imports/{id}", handlers.GetImport())
		v1.Get("/flights/{id}/coordinates", handlers.GetCoordinates())
		v1.Get("/backfill", handlers.BackfillBacklog())

		// Triggers that do store work are rate limited per client
		v1.Group(func(triggers chi.Router) {
			triggers.Use(limiter.Middleware)

			triggers.Post("/imports", handlers.BeginImport())
			triggers.Post("/imports/{id}/next", handlers.ImportNextBatch())
			triggers.Post("/imports/{id}/reset", handlers.ResetImport())
			triggers.Delete("/imports/{id}/session", handlers.AbortImport())
			triggers.Post("/flights/{id}/coordinates/recompute", handlers.RecomputeCoordinates())
			triggers.Post("/backfill", handlers.TriggerBackfill())
		})
	})
}
