package gorm

import (
	"time"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"
)

// ImportCheckpoint tracks how far one source file (name + content hash) has been committed
type ImportCheckpoint struct {
	ID          string `gorm:"column:id;primaryKey;type:uuid"`
	FileName    string `gorm:"column:file_name;type:varchar(255);not null;uniqueIndex:idx_checkpoint_source"`
	ContentHash string `gorm:"column:content_hash;type:varchar(64);not null;uniqueIndex:idx_checkpoint_source"`
	ByteSize    int64  `gorm:"column:byte_size;not null"`

	LastProcessedRow int  `gorm:"column:last_processed_row;not null"`
	TotalRows        int  `gorm:"column:total_rows;not null;default:0"`
	TotalCreated     int  `gorm:"column:total_created;not null;default:0"`
	Completed        bool `gorm:"column:completed;not null;default:false"`

	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	LastUpdatedAt time.Time `gorm:"column:last_updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (ImportCheckpoint) TableName() string {
	return "import_checkpoints"
}

func (c *ImportCheckpoint) BeforeCreate(tx *gormlib.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
