package gorm

import (
	"time"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"
)

// Crew is the pilot or operator a sortie is attributed to
type Crew struct {
	ID          string    `gorm:"column:id;primaryKey;type:uuid"`
	Callname    string    `gorm:"column:callname;type:varchar(100);not null"`
	CallnameKey string    `gorm:"column:callname_key;type:varchar(100);not null;uniqueIndex"`
	Placeholder bool      `gorm:"column:placeholder;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (Crew) TableName() string {
	return "crews"
}

func (c *Crew) BeforeCreate(tx *gormlib.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
