package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	models "rubicon/flightlog/internal/models/gorm"
)

// ErrCheckpointMissing means the checkpoint row vanished during a run. The run
// stops; nothing repairs it automatically.
var ErrCheckpointMissing = errors.New("import checkpoint missing")

// CheckpointRepository is the persisted checkpoint table.
type CheckpointRepository interface {
	FindBySource(ctx context.Context, fileName, contentHash string) (*models.ImportCheckpoint, error)
	FindByID(ctx context.Context, id string) (*models.ImportCheckpoint, error)
	CreateIfAbsent(ctx context.Context, cp *models.ImportCheckpoint) (*models.ImportCheckpoint, error)
	Advance(ctx context.Context, id string, row, created, totalRows int) (int64, error)
	MarkCompleted(ctx context.Context, id string, finalRow, totalRows int) (int64, error)
	Reset(ctx context.Context, id string, row int) (int64, error)
	List(ctx context.Context, limit int) ([]models.ImportCheckpoint, error)
}

// CheckpointStore tracks per-file import progress.
type CheckpointStore struct {
	repo            CheckpointRepository
	defaultStartRow int
}

func NewCheckpointStore(repo CheckpointRepository, defaultStartRow int) *CheckpointStore {
	if defaultStartRow < 1 {
		defaultStartRow = 1
	}
	return &CheckpointStore{repo: repo, defaultStartRow: defaultStartRow}
}

// OpenResult is the outcome of opening a source file.
type OpenResult struct {
	Checkpoint       *models.ImportCheckpoint
	StartRow         int
	AlreadyCompleted bool
}

// Open finds or creates the checkpoint of src. A completed checkpoint is
// reported as such unless startRowOverride rewinds it.
func (s *CheckpointStore) Open(ctx context.Context, src SourceFile, startRowOverride *int) (OpenResult, error) {
	cp, err := s.repo.FindBySource(ctx, src.Name, src.ContentHash)
	if err != nil {
		return OpenResult{}, fmt.Errorf("failed to look up checkpoint: %w", err)
	}

	if cp == nil {
		start := s.defaultStartRow
		if startRowOverride != nil {
			start = *startRowOverride
		}
		cp, err = s.repo.CreateIfAbsent(ctx, &models.ImportCheckpoint{
			FileName:         src.Name,
			ContentHash:      src.ContentHash,
			ByteSize:         src.ByteSize,
			LastProcessedRow: start - 1,
		})
		if err != nil {
			return OpenResult{}, fmt.Errorf("failed to create checkpoint: %w", err)
		}
		if cp == nil {
			return OpenResult{}, ErrCheckpointMissing
		}
		return OpenResult{Checkpoint: cp, StartRow: cp.LastProcessedRow + 1}, nil
	}

	if startRowOverride != nil {
		if err := s.Reset(ctx, cp, *startRowOverride-1); err != nil {
			return OpenResult{}, err
		}
		return OpenResult{Checkpoint: cp, StartRow: *startRowOverride}, nil
	}

	if cp.Completed {
		return OpenResult{Checkpoint: cp, StartRow: cp.LastProcessedRow + 1, AlreadyCompleted: true}, nil
	}
	return OpenResult{Checkpoint: cp, StartRow: cp.LastProcessedRow + 1}, nil
}

// Advance records a committed batch ending at row. totalRows is the best known
// extent of the source; 0 leaves the stored value alone.
func (s *CheckpointStore) Advance(ctx context.Context, cp *models.ImportCheckpoint, row, created, totalRows int) error {
	n, err := s.repo.Advance(ctx, cp.ID, row, created, totalRows)
	if err != nil {
		return fmt.Errorf("failed to advance checkpoint: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrCheckpointMissing, cp.ID)
	}
	cp.LastProcessedRow = row
	cp.TotalCreated += created
	if totalRows > 0 {
		cp.TotalRows = totalRows
	}
	cp.LastUpdatedAt = time.Now()
	return nil
}

// Complete marks the file fully imported.
func (s *CheckpointStore) Complete(ctx context.Context, cp *models.ImportCheckpoint, finalRow, totalRows int) error {
	n, err := s.repo.MarkCompleted(ctx, cp.ID, finalRow, totalRows)
	if err != nil {
		return fmt.Errorf("failed to complete checkpoint: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrCheckpointMissing, cp.ID)
	}
	cp.LastProcessedRow = finalRow
	cp.TotalRows = totalRows
	cp.Completed = true
	cp.LastUpdatedAt = time.Now()
	return nil
}

// Reset rewinds cp so the next import resumes at row+1. Operator action only.
func (s *CheckpointStore) Reset(ctx context.Context, cp *models.ImportCheckpoint, row int) error {
	n, err := s.repo.Reset(ctx, cp.ID, row)
	if err != nil {
		return fmt.Errorf("failed to reset checkpoint: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrCheckpointMissing, cp.ID)
	}
	cp.LastProcessedRow = row
	cp.Completed = false
	cp.LastUpdatedAt = time.Now()
	return nil
}

func (s *CheckpointStore) Get(ctx context.Context, id string) (*models.ImportCheckpoint, error) {
	cp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, fmt.Errorf("%w: %s", ErrCheckpointMissing, id)
	}
	return cp, nil
}

func (s *CheckpointStore) List(ctx context.Context, limit int) ([]models.ImportCheckpoint, error) {
	return s.repo.List(ctx, limit)
}
