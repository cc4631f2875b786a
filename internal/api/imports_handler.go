package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"rubicon/flightlog/internal/common"
	"rubicon/flightlog/internal/ingest"
	"rubicon/flightlog/internal/logging"
	"rubicon/flightlog/internal/models/dtos/requests"
	"rubicon/flightlog/internal/models/dtos/responses"
	models "rubicon/flightlog/internal/models/gorm"
	"rubicon/flightlog/internal/sheet"
)

func (h *Handlers) checkpointResponse(cp *models.ImportCheckpoint) responses.CheckpointResponse {
	return responses.CheckpointResponse{
		ID:               cp.ID,
		FileName:         cp.FileName,
		ContentHash:      cp.ContentHash,
		ByteSize:         cp.ByteSize,
		LastProcessedRow: cp.LastProcessedRow,
		TotalRows:        cp.TotalRows,
		TotalCreated:     cp.TotalCreated,
		Completed:        cp.Completed,
		LastUpdatedAt:    cp.LastUpdatedAt,
		SessionOpen:      slices.Contains(h.deps.Importer.Sessions(), cp.ID),
	}
}

// importStatus maps ingest errors to HTTP status codes.
func importStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, ingest.ErrNoSession), errors.Is(err, ingest.ErrCheckpointMissing), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, sheet.ErrSheetNotFound):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// BeginImport handles POST /api/v1/imports
func (h *Handlers) BeginImport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req requests.BeginImportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		name := filepath.Base(strings.TrimSpace(req.File))
		if name == "." || name == "/" || name == "" || name != strings.TrimSpace(req.File) {
			respondWithError(w, http.StatusBadRequest, "file must be a plain file name")
			return
		}
		if req.StartRow != nil && *req.StartRow < 1 {
			respondWithError(w, http.StatusBadRequest, "start_row must be >= 1")
			return
		}

		src, err := h.deps.Fingerprint(filepath.Join(h.deps.SourceDir, name))
		if err != nil {
			respondWithError(w, importStatus(err), "Source file not readable")
			return
		}

		cp, err := h.deps.Importer.BeginImport(r.Context(), src, req.StartRow)
		if err != nil {
			logging.Warn("[ImportAPI] Failed to begin import", "file", name, "error", err.Error())
			respondWithError(w, importStatus(err), err.Error())
			return
		}

		resp := h.checkpointResponse(cp)
		status := http.StatusCreated
		if cp.Completed {
			status = http.StatusOK
		}
		respondWithSuccess(w, status, &resp)
	}
}

// ImportNextBatch handles POST /api/v1/imports/{id}/next
func (h *Handlers) ImportNextBatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		res, err := h.deps.Importer.ImportNextBatch(r.Context(), id)
		if err != nil {
			respondWithError(w, importStatus(err), err.Error())
			return
		}
		respondWithSuccess(w, http.StatusOK, &res)
	}
}

// AbortImport handles DELETE /api/v1/imports/{id}/session
func (h *Handlers) AbortImport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.deps.Importer.Abort(chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListImports handles GET /api/v1/imports?limit=N
func (h *Handlers) ListImports() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}

		cps, err := h.deps.Checkpoints.List(r.Context(), limit)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to list imports")
			return
		}
		out := make([]responses.CheckpointResponse, 0, len(cps))
		for i := range cps {
			out = append(out, h.checkpointResponse(&cps[i]))
		}
		respondWithSuccess(w, http.StatusOK, &out)
	}
}

// GetImport handles GET /api/v1/imports/{id}
func (h *Handlers) GetImport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cp, err := h.deps.Checkpoints.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondWithError(w, importStatus(err), "Import not found")
			return
		}
		resp := h.checkpointResponse(cp)
		respondWithSuccess(w, http.StatusOK, &resp)
	}
}

// ResetImport handles POST /api/v1/imports/{id}/reset
func (h *Handlers) ResetImport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req requests.ResetCheckpointRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Row < 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if slices.Contains(h.deps.Importer.Sessions(), id) {
			respondWithError(w, http.StatusConflict, "Import session is open")
			return
		}

		cp, err := h.deps.Checkpoints.Get(r.Context(), id)
		if err != nil {
			respondWithError(w, importStatus(err), "Import not found")
			return
		}
		if err := h.deps.Checkpoints.Reset(r.Context(), cp, req.Row); err != nil {
			respondWithError(w, importStatus(err), err.Error())
			return
		}
		logging.Info("[ImportAPI] Checkpoint reset", "checkpoint_id", id, "row", req.Row)

		resp := h.checkpointResponse(cp)
		respondWithSuccess(w, http.StatusOK, &resp)
	}
}
