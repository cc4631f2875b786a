package api

import (
	"context"

	"rubicon/flightlog/internal/geo"
	"rubicon/flightlog/internal/ingest"
	models "rubicon/flightlog/internal/models/gorm"
	"rubicon/flightlog/internal/workers"
)

type ImportService interface {
	BeginImport(ctx context.Context, src ingest.SourceFile, startRowOverride *int) (*models.ImportCheckpoint, error)
	ImportNextBatch(ctx context.Context, checkpointID string) (ingest.BatchResult, error)
	Abort(checkpointID string)
	Sessions() []string
}

type CheckpointService interface {
	Get(ctx context.Context, id string) (*models.ImportCheckpoint, error)
	List(ctx context.Context, limit int) ([]models.ImportCheckpoint, error)
	Reset(ctx context.Context, cp *models.ImportCheckpoint, row int) error
}

type FlightRecords interface {
	FindByID(ctx context.Context, id string) (*models.FlightRecord, error)
	CountUnresolved(ctx context.Context) (int64, error)
}

type CoordinateResolver interface {
	Resolve(ctx context.Context, rec *models.FlightRecord) geo.CoordinateResult
	ForceResolve(ctx context.Context, rec *models.FlightRecord) (geo.CoordinateResult, error)
}

type BackfillRunner interface {
	RunUntilDrained(ctx context.Context, batchSize int) (workers.SweepResult, error)
}

type Dependencies struct {
	Importer    ImportService
	Checkpoints CheckpointService
	Records     FlightRecords
	Resolver    CoordinateResolver
	Backfill    BackfillRunner

	// SourceDir is the only directory import requests may read from.
	SourceDir         string
	BackfillBatchSize int
	Fingerprint       func(path string) (ingest.SourceFile, error)
}

type Handlers struct {
	deps *Dependencies
}

// NewHandlers creates a new handlers instance with injected dependencies
func NewHandlers(deps *Dependencies) *Handlers {
	if deps.Fingerprint == nil {
		deps.Fingerprint = ingest.Fingerprint
	}
	if deps.BackfillBatchSize <= 0 {
		deps.BackfillBatchSize = 500
	}
	return &Handlers{deps: deps}
}
