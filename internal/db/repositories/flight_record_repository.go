package repositories

import (
	"context"
	"strings"
	"time"

	models "rubicon/flightlog/internal/models/gorm"

	gormlib "gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var identityColumns = []clause.Column{
	{Name: "record_number"},
	{Name: "crew_id"},
	{Name: "occurred_on"},
	{Name: "occurred_at"},
}

var coordinateColumns = []string{"legacy_lat", "legacy_lon", "global_lat", "global_lon"}

// FlightRecordRepo handles flight_records table operations
type FlightRecordRepo struct {
	db *gormlib.DB
}

// NewFlightRecordRepo creates a new flight record repository
func NewFlightRecordRepo(db *gormlib.DB) *FlightRecordRepo {
	return &FlightRecordRepo{db: db}
}

// InsertBatch inserts records in one statement, silently skipping rows whose
// identity already exists.
// ON CONFLICT (record_number, crew_id, occurred_on, occurred_at) DO NOTHING
func (r *FlightRecordRepo) InsertBatch(ctx context.Context, records []*models.FlightRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: identityColumns, DoNothing: true}).
		CreateInBatches(records, len(records))
	return res.RowsAffected, res.Error
}

// InsertOne inserts a single record
func (r *FlightRecordRepo) InsertOne(ctx context.Context, record *models.FlightRecord) error {
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Create(record).Error
}

// ExistsByID reports whether a record with id is stored
func (r *FlightRecordRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FlightRecord{}).
		Where("id = ?", id).
		Count(&count).Error
	return count > 0, err
}

// IdentityExists reports whether a record with the same identity is stored
func (r *FlightRecordRepo) IdentityExists(ctx context.Context, number int64, crewID string, on time.Time, at string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FlightRecord{}).
		Where("record_number = ? AND crew_id = ? AND occurred_on = ? AND occurred_at = ?", number, crewID, on, at).
		Count(&count).Error
	return count > 0, err
}

// ExistsIdentical reports whether a stored record matches every imported field of rec
func (r *FlightRecordRepo) ExistsIdentical(ctx context.Context, rec *models.FlightRecord) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.FlightRecord{}).
		Where("record_number = ? AND crew_id = ? AND occurred_on = ? AND occurred_at = ?",
			rec.RecordNumber, rec.CrewID, rec.OccurredOn, rec.OccurredAt).
		Where("target = ? AND platform = ? AND payload = ? AND fuze = ?", rec.Target, rec.Platform, rec.Payload, rec.Fuze).
		Where("result_code = ? AND distance = ? AND comment = ?", rec.ResultCode, rec.Distance, rec.Comment)
	if rec.RawCoordinates == nil {
		query = query.Where("raw_coordinates IS NULL")
	} else {
		query = query.Where("raw_coordinates = ?", *rec.RawCoordinates)
	}

	var count int64
	err := query.Count(&count).Error
	return count > 0, err
}

// FindByID finds a record with its crew. Returns nil when it does not exist.
func (r *FlightRecordRepo) FindByID(ctx context.Context, id string) (*models.FlightRecord, error) {
	var rec models.FlightRecord
	err := r.db.WithContext(ctx).
		Preload("Crew").
		Where("id = ?", id).
		First(&rec).Error
	if err != nil {
		if err == gormlib.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// FindUnresolved returns records with a raw coordinate string and an empty cache
func (r *FlightRecordRepo) FindUnresolved(ctx context.Context, limit int) ([]models.FlightRecord, error) {
	var records []models.FlightRecord
	query := r.db.WithContext(ctx).
		Where("raw_coordinates IS NOT NULL AND raw_coordinates <> ''").
		Where("global_lat IS NULL").
		Order("created_at, id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

// CountUnresolved counts records FindUnresolved would return without a limit
func (r *FlightRecordRepo) CountUnresolved(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FlightRecord{}).
		Where("raw_coordinates IS NOT NULL AND raw_coordinates <> ''").
		Where("global_lat IS NULL").
		Count(&count).Error
	return count, err
}

// BulkUpdateCoordinates writes the coordinate cache of many records in one statement.
// UPDATE flight_records SET legacy_lat = CASE id WHEN ? THEN ? ... END, ... WHERE id IN (...)
func (r *FlightRecordRepo) BulkUpdateCoordinates(ctx context.Context, records []models.FlightRecord) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	for i := range records {
		ids[i] = records[i].ID
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	for _, col := range coordinateColumns {
		var sql strings.Builder
		args := make([]interface{}, 0, 2*len(records))
		sql.WriteString("CASE id")
		for i := range records {
			sql.WriteString(" WHEN ? THEN CAST(? AS DOUBLE PRECISION)")
			args = append(args, records[i].ID, coordinateValue(&records[i], col))
		}
		sql.WriteString(" END")
		updates[col] = gormlib.Expr(sql.String(), args...)
	}

	return r.db.WithContext(ctx).
		Model(&models.FlightRecord{}).
		Where("id IN ?", ids).
		Updates(updates).Error
}

func coordinateValue(rec *models.FlightRecord, col string) *float64 {
	switch col {
	case "legacy_lat":
		return rec.LegacyLat
	case "legacy_lon":
		return rec.LegacyLon
	case "global_lat":
		return rec.GlobalLat
	default:
		return rec.GlobalLon
	}
}

// SaveCoordinates persists the four cache columns of rec, NULLs included
func (r *FlightRecordRepo) SaveCoordinates(ctx context.Context, rec *models.FlightRecord) error {
	return r.db.WithContext(ctx).
		Model(&models.FlightRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"legacy_lat": rec.LegacyLat,
			"legacy_lon": rec.LegacyLon,
			"global_lat": rec.GlobalLat,
			"global_lon": rec.GlobalLon,
			"updated_at": time.Now(),
		}).Error
}

// SaveRawCoordinates persists the raw coordinate string of rec
func (r *FlightRecordRepo) SaveRawCoordinates(ctx context.Context, rec *models.FlightRecord) error {
	return r.db.WithContext(ctx).
		Model(&models.FlightRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"raw_coordinates": rec.RawCoordinates,
			"updated_at":      time.Now(),
		}).Error
}

// InvalidateSentinels clears every cache holding the failure sentinel so the
// next sweep retries those records.
func (r *FlightRecordRepo) InvalidateSentinels(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FlightRecord{}).
		Where("legacy_lat = ? AND legacy_lon = ? AND global_lat = ? AND global_lon = ?",
			models.SentinelLat, models.SentinelLon, models.SentinelLat, models.SentinelLon).
		Updates(map[string]interface{}{
			"legacy_lat": nil,
			"legacy_lon": nil,
			"global_lat": nil,
			"global_lon": nil,
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

// CountByCheckpoint counts the records created by one import
func (r *FlightRecordRepo) CountByCheckpoint(ctx context.Context, checkpointID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FlightRecord{}).
		Where("checkpoint_id = ?", checkpointID).
		Count(&count).Error
	return count, err
}
