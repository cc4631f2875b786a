package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rubicon/flightlog/internal/api"
	"rubicon/flightlog/internal/logging"
	"rubicon/flightlog/internal/metrics"
	"rubicon/flightlog/internal/middleware"
)

type RouterOptions struct {
	Metrics  *metrics.Registry
	Gatherer prometheus.Gatherer
	Health   map[string]api.Pinger
	UpSince  time.Time

	RateLimitPerSecond float64
	RateLimitBurst     int
}

func RegisterRoutes(deps *api.Dependencies, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// global middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.Logging)
	r.Use(middleware.MetricsMiddleware(opts.Metrics))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://localhost:8081"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthCheck", api.HealthCheckHandler(opts.Health, opts.UpSince))

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	handlers := api.NewHandlers(deps)
	limiter := middleware.NewIPRateLimiter(opts.RateLimitPerSecond, opts.RateLimitBurst, "127.0.0.1")
	RegisterAPIRoutes(r, handlers, limiter, opts.Metrics)

	logging.Info("Router initialized with metrics and logging middleware")
	return r
}
