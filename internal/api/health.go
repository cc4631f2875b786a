package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"rubicon/flightlog/internal/constants"
	"rubicon/flightlog/internal/models/entities"
)

// Pinger is a dependency the health check pings.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// HealthCheckHandler handles GET /healthCheck
func HealthCheckHandler(checks map[string]Pinger, upSince time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		services := make(map[string]entities.ServiceStatus, len(checks))
		overallStatus := constants.HealthStatusOk
		for name, p := range checks {
			status := entities.ServiceStatus{Status: string(constants.HealthStatusOk), Details: "connected"}
			if err := p.PingContext(ctx); err != nil {
				status = entities.ServiceStatus{Status: string(constants.HealthStatusDown), Details: err.Error()}
				overallStatus = constants.HealthStatusDown
			}
			services[name] = status
		}

		resp := entities.HealthCheckResponse{
			Services: services,
			Status:   string(overallStatus),
			UpSince:  upSince,
			Uptime:   time.Since(upSince).Round(time.Second).String(),
		}
		w.Header().Set("Content-Type", "application/json")
		if overallStatus != constants.HealthStatusOk {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
