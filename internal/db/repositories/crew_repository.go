package repositories

import (
	"context"

	models "rubicon/flightlog/internal/models/gorm"

	gormlib "gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CrewRepo handles crews table operations
type CrewRepo struct {
	db *gormlib.DB
}

// NewCrewRepo creates a new crew repository
func NewCrewRepo(db *gormlib.DB) *CrewRepo {
	return &CrewRepo{db: db}
}

// GetOrCreate returns the crew for callnameKey, inserting it when missing.
// Concurrent importers converge on the same row.
func (r *CrewRepo) GetOrCreate(ctx context.Context, callname, callnameKey string, placeholder bool) (*models.Crew, error) {
	crew := models.Crew{
		Callname:    callname,
		CallnameKey: callnameKey,
		Placeholder: placeholder,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "callname_key"}},
			DoNothing: true,
		}).
		Create(&crew).Error
	if err != nil {
		return nil, err
	}

	var stored models.Crew
	if err := r.db.WithContext(ctx).
		Where("callname_key = ?", callnameKey).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// FindByID finds a crew by ID. Returns nil when it does not exist.
func (r *CrewRepo) FindByID(ctx context.Context, id string) (*models.Crew, error) {
	var crew models.Crew
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&crew).Error
	if err != nil {
		if err == gormlib.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &crew, nil
}
