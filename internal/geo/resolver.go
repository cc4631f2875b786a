package geo

import (
	"context"
	"fmt"

	"rubicon/flightlog/internal/logging"
	models "rubicon/flightlog/internal/models/gorm"
)

// CoordinateResult is the resolved pair in both legacy degrees and display degrees.
type CoordinateResult struct {
	LegacyLat float64 `json:"legacy_lat"`
	LegacyLon float64 `json:"legacy_lon"`
	GlobalLat float64 `json:"global_lat"`
	GlobalLon float64 `json:"global_lon"`
}

// Sentinel marks a record whose coordinates can never be resolved.
var Sentinel = CoordinateResult{
	LegacyLat: models.SentinelLat,
	LegacyLon: models.SentinelLon,
	GlobalLat: models.SentinelLat,
	GlobalLon: models.SentinelLon,
}

func (c CoordinateResult) IsSentinel() bool {
	return c == Sentinel
}

// CoordinateStore persists the four cache columns (and the raw string) of a record.
type CoordinateStore interface {
	SaveCoordinates(ctx context.Context, rec *models.FlightRecord) error
	SaveRawCoordinates(ctx context.Context, rec *models.FlightRecord) error
}

// Resolver applies the engine to flight records and keeps their coordinate cache.
type Resolver struct {
	engine *Engine
	store  CoordinateStore
}

// NewResolver builds a resolver. A nil store resolves in memory only.
func NewResolver(engine *Engine, store CoordinateStore) *Resolver {
	return &Resolver{engine: engine, store: store}
}

func (r *Resolver) Engine() *Engine { return r.engine }

// Compute converts a raw legacy string. Failures return the sentinel together with the cause.
func (r *Resolver) Compute(raw string) (CoordinateResult, error) {
	northing, easting, err := r.engine.ParseLegacyCoordinates(raw)
	if err != nil {
		return Sentinel, err
	}
	lat, lon, err := r.engine.ToGlobalDegrees(northing, easting)
	if err != nil {
		return Sentinel, err
	}
	gLat, gLon := r.engine.DegreesToDisplayDatum(lat, lon)
	return CoordinateResult{LegacyLat: lat, LegacyLon: lon, GlobalLat: gLat, GlobalLon: gLon}, nil
}

// Cached returns the cached pair when all four columns are set.
func Cached(rec *models.FlightRecord) (CoordinateResult, bool) {
	if !rec.CoordinatesCached() {
		return CoordinateResult{}, false
	}
	return CoordinateResult{
		LegacyLat: *rec.LegacyLat,
		LegacyLon: *rec.LegacyLon,
		GlobalLat: *rec.GlobalLat,
		GlobalLon: *rec.GlobalLon,
	}, true
}

// Apply writes a result into the record's cache columns without persisting it.
func Apply(rec *models.FlightRecord, res CoordinateResult) {
	rec.SetCoordinates(res.LegacyLat, res.LegacyLon, res.GlobalLat, res.GlobalLon)
}

// Resolve returns the record's coordinates, computing and persisting them on a miss.
// A cached sentinel is a hit: malformed input is never reparsed. Errors are never returned,
// a failed conversion is the sentinel.
func (r *Resolver) Resolve(ctx context.Context, rec *models.FlightRecord) CoordinateResult {
	if cached, ok := Cached(rec); ok {
		return cached
	}

	raw := ""
	if rec.RawCoordinates != nil {
		raw = *rec.RawCoordinates
	}
	res, err := r.Compute(raw)
	if err != nil {
		logging.Debug("[CoordinateResolver] Caching sentinel",
			"record_id", rec.ID,
			"raw", raw,
			"error", err.Error(),
		)
	}

	Apply(rec, res)
	if r.store != nil {
		if err := r.store.SaveCoordinates(ctx, rec); err != nil {
			logging.Warn("[CoordinateResolver] Failed to persist coordinates",
				"record_id", rec.ID,
				"error", err.Error(),
			)
		}
	}
	return res
}

// Invalidate clears the cached coordinates so the record is resolved again.
func (r *Resolver) Invalidate(ctx context.Context, rec *models.FlightRecord) error {
	rec.ClearCoordinates()
	if r.store == nil {
		return nil
	}
	if err := r.store.SaveCoordinates(ctx, rec); err != nil {
		return fmt.Errorf("failed to clear coordinates for %s: %w", rec.ID, err)
	}
	return nil
}

// ForceResolve discards any cached value and resolves from the raw string.
func (r *Resolver) ForceResolve(ctx context.Context, rec *models.FlightRecord) (CoordinateResult, error) {
	if err := r.Invalidate(ctx, rec); err != nil {
		return CoordinateResult{}, err
	}
	return r.Resolve(ctx, rec), nil
}

// RederiveLegacy rewrites the raw legacy string from an edited display coordinate
// and refreshes the cache to match.
func (r *Resolver) RederiveLegacy(ctx context.Context, rec *models.FlightRecord, globalLat, globalLon float64) error {
	lat, lon := r.engine.GlobalToLegacyDegrees(globalLat, globalLon)
	// keep the zone the record was written in
	zone := 0
	if rec.RawCoordinates != nil {
		if _, oldEasting, err := r.engine.ParseLegacyCoordinates(*rec.RawCoordinates); err == nil {
			zone = EstimateZone(oldEasting)
		}
	}
	northing, easting, err := r.engine.DegreesToLegacyMetersInZone(lat, lon, zone)
	if err != nil {
		return err
	}

	raw := fmt.Sprintf("%.0f %.0f", northing, easting)
	rec.RawCoordinates = &raw
	rec.SetCoordinates(lat, lon, round8(globalLat), round8(globalLon))

	if r.store == nil {
		return nil
	}
	if err := r.store.SaveRawCoordinates(ctx, rec); err != nil {
		return fmt.Errorf("failed to save rederived coordinates for %s: %w", rec.ID, err)
	}
	return nil
}
