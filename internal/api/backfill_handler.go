package api

import (
	"net/http"
	"strconv"

	"rubicon/flightlog/internal/logging"
	"rubicon/flightlog/internal/models/dtos/responses"
)

// TriggerBackfill handles POST /api/v1/backfill?batch_size=N
// The sweep runs in the request; callers see the tally once the backlog is drained.
func (h *Handlers) TriggerBackfill() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchSize := h.deps.BackfillBatchSize
		if v := r.URL.Query().Get("batch_size"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				respondWithError(w, http.StatusBadRequest, "batch_size must be a positive integer")
				return
			}
			batchSize = n
		}

		res, err := h.deps.Backfill.RunUntilDrained(r.Context(), batchSize)
		if err != nil {
			logging.Error("[BackfillAPI] Backfill failed", "error", err.Error())
			respondWithError(w, http.StatusInternalServerError, "Backfill failed")
			return
		}
		respondWithSuccess(w, http.StatusOK, &res)
	}
}

// BackfillBacklog handles GET /api/v1/backfill
func (h *Handlers) BackfillBacklog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := h.deps.Records.CountUnresolved(r.Context())
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to count backlog")
			return
		}
		respondWithSuccess(w, http.StatusOK, &responses.BacklogResponse{Unresolved: n})
	}
}
