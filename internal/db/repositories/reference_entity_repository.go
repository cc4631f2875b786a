package repositories

import (
	"context"
	"time"

	models "rubicon/flightlog/internal/models/gorm"

	gormlib "gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReferenceEntityRepo handles reference_entities table operations
type ReferenceEntityRepo struct {
	db *gormlib.DB
}

// NewReferenceEntityRepo creates a new reference entity repository
func NewReferenceEntityRepo(db *gormlib.DB) *ReferenceEntityRepo {
	return &ReferenceEntityRepo{db: db}
}

// LoadAll returns every entity of every domain
func (r *ReferenceEntityRepo) LoadAll(ctx context.Context) ([]models.ReferenceEntity, error) {
	var entities []models.ReferenceEntity
	err := r.db.WithContext(ctx).
		Order("domain, comparison_key").
		Find(&entities).Error
	return entities, err
}

// ListByDomain returns the entities of one domain ordered by display name
func (r *ReferenceEntityRepo) ListByDomain(ctx context.Context, domain string) ([]models.ReferenceEntity, error) {
	var entities []models.ReferenceEntity
	err := r.db.WithContext(ctx).
		Where("domain = ?", domain).
		Order("display_name").
		Find(&entities).Error
	return entities, err
}

// CreateIgnoreConflicts inserts entities, skipping keys that already exist.
// ON CONFLICT (domain, comparison_key) DO NOTHING
func (r *ReferenceEntityRepo) CreateIgnoreConflicts(ctx context.Context, entities []models.ReferenceEntity) (int64, error) {
	if len(entities) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "domain"},
				{Name: "comparison_key"},
			},
			DoNothing: true,
		}).
		CreateInBatches(&entities, 100)
	return res.RowsAffected, res.Error
}

// UpdateDisplayName replaces the display name (and platform kind) of one key
func (r *ReferenceEntityRepo) UpdateDisplayName(ctx context.Context, domain, comparisonKey, displayName, kind string) error {
	return r.db.WithContext(ctx).
		Model(&models.ReferenceEntity{}).
		Where("domain = ? AND comparison_key = ?", domain, comparisonKey).
		Updates(map[string]interface{}{
			"display_name": displayName,
			"kind":         kind,
			"updated_at":   time.Now(),
		}).Error
}
