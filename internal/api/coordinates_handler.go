package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"rubicon/flightlog/internal/geo"
	"rubicon/flightlog/internal/models/dtos/responses"
	models "rubicon/flightlog/internal/models/gorm"
)

func coordinatesResponse(rec *models.FlightRecord, res geo.CoordinateResult) responses.CoordinatesResponse {
	out := responses.CoordinatesResponse{
		RecordID:  rec.ID,
		LegacyLat: res.LegacyLat,
		LegacyLon: res.LegacyLon,
		GlobalLat: res.GlobalLat,
		GlobalLon: res.GlobalLon,
		Resolved:  !res.IsSentinel(),
	}
	if rec.RawCoordinates != nil {
		out.RawCoordinates = *rec.RawCoordinates
	}
	return out
}

// GetCoordinates handles GET /api/v1/flights/{id}/coordinates
// A record that cannot be converted answers 200 with the sentinel pair.
func (h *Handlers) GetCoordinates() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := h.deps.Records.FindByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to load flight record")
			return
		}
		if rec == nil {
			respondWithError(w, http.StatusNotFound, "Flight record not found")
			return
		}

		resp := coordinatesResponse(rec, h.deps.Resolver.Resolve(r.Context(), rec))
		respondWithSuccess(w, http.StatusOK, &resp)
	}
}

// RecomputeCoordinates handles POST /api/v1/flights/{id}/coordinates/recompute
func (h *Handlers) RecomputeCoordinates() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := h.deps.Records.FindByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to load flight record")
			return
		}
		if rec == nil {
			respondWithError(w, http.StatusNotFound, "Flight record not found")
			return
		}

		res, err := h.deps.Resolver.ForceResolve(r.Context(), rec)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp := coordinatesResponse(rec, res)
		respondWithSuccess(w, http.StatusOK, &resp)
	}
}
