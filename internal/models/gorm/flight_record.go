package gorm

import (
	"time"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"
)

// Sentinel coordinate written into all four cache columns when resolution failed for good.
const (
	SentinelLat = 90.0
	SentinelLon = 0.0
)

// FlightRecord is one imported sortie row
type FlightRecord struct {
	ID           string `gorm:"column:id;primaryKey;type:uuid"`
	CheckpointID string `gorm:"column:checkpoint_id;type:uuid;index"`
	SourceRow    int    `gorm:"column:source_row;not null"`

	// Identity used for duplicate suppression
	RecordNumber int64     `gorm:"column:record_number;not null;uniqueIndex:idx_flight_identity"`
	CrewID       string    `gorm:"column:crew_id;type:uuid;not null;uniqueIndex:idx_flight_identity"`
	OccurredOn   time.Time `gorm:"column:occurred_on;type:date;not null;uniqueIndex:idx_flight_identity"`
	OccurredAt   string    `gorm:"column:occurred_at;type:varchar(8);not null;uniqueIndex:idx_flight_identity"`

	// Category display names resolved through the reference catalog
	Target   string `gorm:"column:target;type:varchar(255)"`
	Platform string `gorm:"column:platform;type:varchar(255)"`
	Payload  string `gorm:"column:payload;type:varchar(255)"`
	Fuze     string `gorm:"column:fuze;type:varchar(255)"`

	ResultCode string `gorm:"column:result_code;type:varchar(20);not null"`
	Objective  string `gorm:"column:objective;type:varchar(20);not null"`
	Distance   string `gorm:"column:distance;type:varchar(100)"`
	Comment    string `gorm:"column:comment;type:varchar(255)"`

	RawCoordinates *string `gorm:"column:raw_coordinates;type:varchar(100)"`

	// Coordinate cache. All nil: not resolved yet. All sentinel: resolution failed.
	LegacyLat *float64 `gorm:"column:legacy_lat"`
	LegacyLon *float64 `gorm:"column:legacy_lon"`
	GlobalLat *float64 `gorm:"column:global_lat;index"`
	GlobalLon *float64 `gorm:"column:global_lon"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Crew Crew `gorm:"foreignKey:CrewID"`
}

// TableName specifies the table name for GORM
func (FlightRecord) TableName() string {
	return "flight_records"
}

func (f *FlightRecord) BeforeCreate(tx *gormlib.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// CoordinatesCached reports whether all four cache columns hold a value.
func (f *FlightRecord) CoordinatesCached() bool {
	return f.LegacyLat != nil && f.LegacyLon != nil && f.GlobalLat != nil && f.GlobalLon != nil
}

// CoordinatesSentinel reports whether the cache holds the failure sentinel.
func (f *FlightRecord) CoordinatesSentinel() bool {
	return f.CoordinatesCached() &&
		*f.LegacyLat == SentinelLat && *f.LegacyLon == SentinelLon &&
		*f.GlobalLat == SentinelLat && *f.GlobalLon == SentinelLon
}

// SetCoordinates fills the four cache columns.
func (f *FlightRecord) SetCoordinates(legacyLat, legacyLon, globalLat, globalLon float64) {
	f.LegacyLat = &legacyLat
	f.LegacyLon = &legacyLon
	f.GlobalLat = &globalLat
	f.GlobalLon = &globalLon
}

// ClearCoordinates empties the cache so the record is selected for resolution again.
func (f *FlightRecord) ClearCoordinates() {
	f.LegacyLat, f.LegacyLon, f.GlobalLat, f.GlobalLon = nil, nil, nil, nil
}
