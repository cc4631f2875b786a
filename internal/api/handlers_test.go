package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rubicon/flightlog/internal/common"
	"rubicon/flightlog/internal/geo"
	"rubicon/flightlog/internal/ingest"
	"rubicon/flightlog/internal/models/dtos/responses"
	models "rubicon/flightlog/internal/models/gorm"
	"rubicon/flightlog/internal/workers"
)

type fakeImporter struct {
	begun    []ingest.SourceFile
	startRow *int
	beginErr error
	batch    ingest.BatchResult
	batchErr error
	aborted  []string
	sessions []string
}

func (f *fakeImporter) BeginImport(ctx context.Context, src ingest.SourceFile, startRowOverride *int) (*models.ImportCheckpoint, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.begun = append(f.begun, src)
	f.startRow = startRowOverride
	return &models.ImportCheckpoint{ID: "cp-1", FileName: src.Name, ContentHash: src.ContentHash, LastProcessedRow: 4}, nil
}

func (f *fakeImporter) ImportNextBatch(ctx context.Context, checkpointID string) (ingest.BatchResult, error) {
	return f.batch, f.batchErr
}

func (f *fakeImporter) Abort(checkpointID string) { f.aborted = append(f.aborted, checkpointID) }

func (f *fakeImporter) Sessions() []string { return f.sessions }

type fakeCheckpoints struct {
	items map[string]*models.ImportCheckpoint
	reset map[string]int
}

func (f *fakeCheckpoints) Get(ctx context.Context, id string) (*models.ImportCheckpoint, error) {
	cp, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ingest.ErrCheckpointMissing, id)
	}
	return cp, nil
}

func (f *fakeCheckpoints) List(ctx context.Context, limit int) ([]models.ImportCheckpoint, error) {
	var out []models.ImportCheckpoint
	for _, cp := range f.items {
		out = append(out, *cp)
	}
	return out, nil
}

func (f *fakeCheckpoints) Reset(ctx context.Context, cp *models.ImportCheckpoint, row int) error {
	f.reset[cp.ID] = row
	cp.LastProcessedRow = row
	cp.Completed = false
	return nil
}

type fakeRecords struct {
	items      map[string]*models.FlightRecord
	unresolved int64
}

func (f *fakeRecords) FindByID(ctx context.Context, id string) (*models.FlightRecord, error) {
	return f.items[id], nil
}

func (f *fakeRecords) CountUnresolved(ctx context.Context) (int64, error) {
	return f.unresolved, nil
}

type fakeBackfill struct {
	batchSize int
	result    workers.SweepResult
}

func (f *fakeBackfill) RunUntilDrained(ctx context.Context, batchSize int) (workers.SweepResult, error) {
	f.batchSize = batchSize
	return f.result, nil
}

type testServer struct {
	router      http.Handler
	importer    *fakeImporter
	checkpoints *fakeCheckpoints
	records     *fakeRecords
	backfill    *fakeBackfill
	fingerprint []string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := &testServer{
		importer: &fakeImporter{},
		checkpoints: &fakeCheckpoints{
			items: map[string]*models.ImportCheckpoint{
				"cp-1": {ID: "cp-1", FileName: "journal.xlsx", LastProcessedRow: 90, Completed: true},
			},
			reset: map[string]int{},
		},
		records:  &fakeRecords{items: map[string]*models.FlightRecord{}},
		backfill: &fakeBackfill{result: workers.SweepResult{Selected: 3, Success: 2, Errors: 1}},
	}

	h := NewHandlers(&Dependencies{
		Importer:    s.importer,
		Checkpoints: s.checkpoints,
		Records:     s.records,
		Resolver:    geo.NewResolver(geo.NewEngine(geo.DefaultZoneConfig(), nil), nil),
		Backfill:    s.backfill,
		SourceDir:   "/data/imports",
		Fingerprint: func(path string) (ingest.SourceFile, error) {
			s.fingerprint = append(s.fingerprint, path)
			if path == "/data/imports/missing.xlsx" {
				return ingest.SourceFile{}, fs.ErrNotExist
			}
			return ingest.SourceFile{Name: "journal.xlsx", ContentHash: "abc", Path: path}, nil
		},
	})

	r := chi.NewRouter()
	r.Post("/api/v1/imports", h.BeginImport())
	r.Get("/api/v1/imports", h.ListImports())
	r.Get("/api/v1/imports/{id}", h.GetImport())
	r.Post("/api/v1/imports/{id}/next", h.ImportNextBatch())
	r.Post("/api/v1/imports/{id}/reset", h.ResetImport())
	r.Delete("/api/v1/imports/{id}/session", h.AbortImport())
	r.Get("/api/v1/flights/{id}/coordinates", h.GetCoordinates())
	r.Post("/api/v1/flights/{id}/coordinates/recompute", h.RecomputeCoordinates())
	r.Post("/api/v1/backfill", h.TriggerBackfill())
	r.Get("/api/v1/backfill", h.BackfillBacklog())
	s.router = r
	return s
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) responses.APIResponse[T] {
	t.Helper()
	var resp responses.APIResponse[T]
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func TestBeginImportReadsFromSourceDir(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/api/v1/imports", map[string]any{"file": "journal.xlsx", "start_row": 7})
	require.Equal(t, http.StatusCreated, rr.Code)

	resp := decode[responses.CheckpointResponse](t, rr)
	assert.Equal(t, "success", resp.Status)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "cp-1", resp.Data.ID)
	assert.Equal(t, []string{"/data/imports/journal.xlsx"}, s.fingerprint)
	require.NotNil(t, s.importer.startRow)
	assert.Equal(t, 7, *s.importer.startRow)
}

func TestBeginImportRejectsPaths(t *testing.T) {
	s := newTestServer(t)

	for _, file := range []string{"../etc/passwd", "sub/journal.xlsx", "", "/abs.xlsx"} {
		rr := s.do(http.MethodPost, "/api/v1/imports", map[string]any{"file": file})
		assert.Equal(t, http.StatusBadRequest, rr.Code, file)
	}
	assert.Empty(t, s.fingerprint)

	rr := s.do(http.MethodPost, "/api/v1/imports", map[string]any{"file": "journal.xlsx", "start_row": 0})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBeginImportErrors(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/api/v1/imports", map[string]any{"file": "missing.xlsx"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	s.importer.beginErr = fmt.Errorf("journal.xlsx: %w", common.ErrLocked)
	rr = s.do(http.MethodPost, "/api/v1/imports", map[string]any{"file": "journal.xlsx"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, decode[any](t, rr).Error, "locked")
}

func TestImportNextBatch(t *testing.T) {
	s := newTestServer(t)
	s.importer.batch = ingest.BatchResult{Created: 20, SkippedDuplicate: 5, CheckpointAdvancedTo: 30}

	rr := s.do(http.MethodPost, "/api/v1/imports/cp-1/next", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[ingest.BatchResult](t, rr)
	assert.Equal(t, s.importer.batch, *resp.Data)

	s.importer.batchErr = fmt.Errorf("%w: cp-2", ingest.ErrNoSession)
	rr = s.do(http.MethodPost, "/api/v1/imports/cp-2/next", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetAndResetImport(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodGet, "/api/v1/imports/cp-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[responses.CheckpointResponse](t, rr).Data.Completed)

	rr = s.do(http.MethodGet, "/api/v1/imports/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(http.MethodPost, "/api/v1/imports/cp-1/reset", map[string]int{"row": 40})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 40, s.checkpoints.reset["cp-1"])
	data := decode[responses.CheckpointResponse](t, rr).Data
	assert.False(t, data.Completed)
	assert.Equal(t, 40, data.LastProcessedRow)

	s.importer.sessions = []string{"cp-1"}
	rr = s.do(http.MethodPost, "/api/v1/imports/cp-1/reset", map[string]int{"row": 10})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestListAndAbortImports(t *testing.T) {
	s := newTestServer(t)
	s.importer.sessions = []string{"cp-1"}

	rr := s.do(http.MethodGet, "/api/v1/imports?limit=10", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]responses.CheckpointResponse](t, rr).Data
	require.Len(t, *list, 1)
	assert.True(t, (*list)[0].SessionOpen)

	rr = s.do(http.MethodGet, "/api/v1/imports?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodDelete, "/api/v1/imports/cp-1/session", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"cp-1"}, s.importer.aborted)
}

func TestGetCoordinates(t *testing.T) {
	s := newTestServer(t)
	valid, broken := "5432100 7401200", "X=99999999 Y=1"
	s.records.items["ok"] = &models.FlightRecord{ID: "ok", RawCoordinates: &valid}
	s.records.items["bad"] = &models.FlightRecord{ID: "bad", RawCoordinates: &broken}

	rr := s.do(http.MethodGet, "/api/v1/flights/ok/coordinates", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	data := decode[responses.CoordinatesResponse](t, rr).Data
	assert.True(t, data.Resolved)
	assert.InDelta(t, 49.0, data.LegacyLat, 1.0)
	assert.Equal(t, valid, data.RawCoordinates)

	rr = s.do(http.MethodGet, "/api/v1/flights/bad/coordinates", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	data = decode[responses.CoordinatesResponse](t, rr).Data
	assert.False(t, data.Resolved)
	assert.Equal(t, models.SentinelLat, data.GlobalLat)
	assert.Equal(t, models.SentinelLon, data.GlobalLon)

	rr = s.do(http.MethodGet, "/api/v1/flights/none/coordinates", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRecomputeCoordinatesIgnoresCache(t *testing.T) {
	s := newTestServer(t)
	valid := "5432100 7401200"
	rec := &models.FlightRecord{ID: "ok", RawCoordinates: &valid}
	rec.SetCoordinates(models.SentinelLat, models.SentinelLon, models.SentinelLat, models.SentinelLon)
	s.records.items["ok"] = rec

	rr := s.do(http.MethodGet, "/api/v1/flights/ok/coordinates", nil)
	assert.False(t, decode[responses.CoordinatesResponse](t, rr).Data.Resolved)

	rr = s.do(http.MethodPost, "/api/v1/flights/ok/coordinates/recompute", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[responses.CoordinatesResponse](t, rr).Data.Resolved)
}

func TestBackfillEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.records.unresolved = 12

	rr := s.do(http.MethodGet, "/api/v1/backfill", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(12), decode[responses.BacklogResponse](t, rr).Data.Unresolved)

	rr = s.do(http.MethodPost, "/api/v1/backfill?batch_size=100", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 100, s.backfill.batchSize)
	assert.Equal(t, workers.SweepResult{Selected: 3, Success: 2, Errors: 1}, *decode[workers.SweepResult](t, rr).Data)

	rr = s.do(http.MethodPost, "/api/v1/backfill", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 500, s.backfill.batchSize)
}

func TestHealthCheck(t *testing.T) {
	up := time.Now().Add(-time.Minute)
	h := HealthCheckHandler(map[string]Pinger{
		"database": PingFunc(func(ctx context.Context) error { return nil }),
	}, up)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthCheck", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)

	h = HealthCheckHandler(map[string]Pinger{
		"database": PingFunc(func(ctx context.Context) error { return nil }),
		"redis":    PingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	}, up)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthCheck", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "connection refused")
}
