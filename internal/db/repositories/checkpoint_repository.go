package repositories

import (
	"context"
	"time"

	models "rubicon/flightlog/internal/models/gorm"

	gormlib "gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CheckpointRepo handles import_checkpoints table operations
type CheckpointRepo struct {
	db *gormlib.DB
}

// NewCheckpointRepo creates a new checkpoint repository
func NewCheckpointRepo(db *gormlib.DB) *CheckpointRepo {
	return &CheckpointRepo{db: db}
}

// FindBySource finds the checkpoint of a file name and content hash.
// Returns nil when none exists.
func (r *CheckpointRepo) FindBySource(ctx context.Context, fileName, contentHash string) (*models.ImportCheckpoint, error) {
	var cp models.ImportCheckpoint
	err := r.db.WithContext(ctx).
		Where("file_name = ? AND content_hash = ?", fileName, contentHash).
		First(&cp).Error
	if err != nil {
		if err == gormlib.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &cp, nil
}

// FindByID finds a checkpoint by ID. Returns nil when none exists.
func (r *CheckpointRepo) FindByID(ctx context.Context, id string) (*models.ImportCheckpoint, error) {
	var cp models.ImportCheckpoint
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&cp).Error
	if err != nil {
		if err == gormlib.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &cp, nil
}

// CreateIfAbsent inserts cp unless its source already has a checkpoint, and
// returns the stored row either way.
// ON CONFLICT (file_name, content_hash) DO NOTHING
func (r *CheckpointRepo) CreateIfAbsent(ctx context.Context, cp *models.ImportCheckpoint) (*models.ImportCheckpoint, error) {
	cp.LastUpdatedAt = time.Now()
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "file_name"},
				{Name: "content_hash"},
			},
			DoNothing: true,
		}).
		Create(cp).Error
	if err != nil {
		return nil, err
	}
	return r.FindBySource(ctx, cp.FileName, cp.ContentHash)
}

// Advance moves the committed row forward and adds to the created counter.
// Returns the number of rows updated (0 when the checkpoint is gone).
func (r *CheckpointRepo) Advance(ctx context.Context, id string, row, created, totalRows int) (int64, error) {
	updates := map[string]interface{}{
		"last_processed_row": row,
		"total_created":      gormlib.Expr("total_created + ?", created),
		"last_updated_at":    time.Now(),
	}
	if totalRows > 0 {
		updates["total_rows"] = totalRows
	}
	res := r.db.WithContext(ctx).
		Model(&models.ImportCheckpoint{}).
		Where("id = ?", id).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// MarkCompleted records the final row and flags the file as fully imported
func (r *CheckpointRepo) MarkCompleted(ctx context.Context, id string, finalRow, totalRows int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ImportCheckpoint{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_processed_row": finalRow,
			"total_rows":         totalRows,
			"completed":          true,
			"last_updated_at":    time.Now(),
		})
	return res.RowsAffected, res.Error
}

// Reset rewinds a checkpoint so the file is imported again from row+1
func (r *CheckpointRepo) Reset(ctx context.Context, id string, row int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ImportCheckpoint{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_processed_row": row,
			"completed":          false,
			"last_updated_at":    time.Now(),
		})
	return res.RowsAffected, res.Error
}

// List returns every checkpoint, most recently updated first
func (r *CheckpointRepo) List(ctx context.Context, limit int) ([]models.ImportCheckpoint, error) {
	var cps []models.ImportCheckpoint
	query := r.db.WithContext(ctx).Order("last_updated_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&cps).Error
	return cps, err
}
