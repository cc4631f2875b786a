package gorm

import (
	"time"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"
)

// ReferenceEntity is one canonical value of a free-text category domain
type ReferenceEntity struct {
	ID     string `gorm:"column:id;primaryKey;type:uuid"`
	Domain string `gorm:"column:domain;type:varchar(32);not null;uniqueIndex:idx_reference_domain_key"`

	// ComparisonKey is what equality is decided on. NormalizedKey keeps the
	// canonical spelling (platform keys keep their hyphens).
	ComparisonKey string `gorm:"column:comparison_key;type:varchar(255);not null;uniqueIndex:idx_reference_domain_key"`
	NormalizedKey string `gorm:"column:normalized_key;type:varchar(255);not null"`
	DisplayName   string `gorm:"column:display_name;type:varchar(255);not null"`

	// Kind is only set for platforms (KT or ST).
	Kind string `gorm:"column:kind;type:varchar(8)"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (ReferenceEntity) TableName() string {
	return "reference_entities"
}

func (r *ReferenceEntity) BeforeCreate(tx *gormlib.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
