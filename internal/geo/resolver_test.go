package geo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "rubicon/flightlog/internal/models/gorm"
)

type fakeCoordinateStore struct {
	saves    int
	rawSaves int
}

func (f *fakeCoordinateStore) SaveCoordinates(ctx context.Context, rec *models.FlightRecord) error {
	f.saves++
	return nil
}

func (f *fakeCoordinateStore) SaveRawCoordinates(ctx context.Context, rec *models.FlightRecord) error {
	f.rawSaves++
	return nil
}

func recordWithRaw(raw string) *models.FlightRecord {
	return &models.FlightRecord{ID: "rec-1", RawCoordinates: &raw}
}

func TestResolveMalformedIsCachedSentinel(t *testing.T) {
	store := &fakeCoordinateStore{}
	r := NewResolver(NewEngine(DefaultZoneConfig(), nil), store)
	rec := recordWithRaw("X=99999999 Y=1")

	first := r.Resolve(context.Background(), rec)
	assert.True(t, first.IsSentinel())
	assert.True(t, rec.CoordinatesSentinel())
	assert.Equal(t, 1, store.saves)

	second := r.Resolve(context.Background(), rec)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.saves, "sentinel must be served from the cache")
}

func TestResolveMissingRawIsSentinel(t *testing.T) {
	r := NewResolver(NewEngine(DefaultZoneConfig(), nil), nil)
	rec := &models.FlightRecord{ID: "rec-2"}

	res := r.Resolve(context.Background(), rec)
	assert.True(t, res.IsSentinel())
}

func TestResolveValidPersistsOnce(t *testing.T) {
	store := &fakeCoordinateStore{}
	r := NewResolver(NewEngine(DefaultZoneConfig(), nil), store)
	rec := recordWithRaw("5432100 7401200")

	res := r.Resolve(context.Background(), rec)
	require.False(t, res.IsSentinel())
	assert.InDelta(t, 49.0, res.LegacyLat, 1.0)
	assert.InDelta(t, 37.65, res.LegacyLon, 1.0)
	assert.InDelta(t, res.LegacyLat, res.GlobalLat, 0.01)
	assert.InDelta(t, res.LegacyLon, res.GlobalLon, 0.01)
	assert.Equal(t, 1, store.saves)

	again := r.Resolve(context.Background(), rec)
	assert.Equal(t, res, again)
	assert.Equal(t, 1, store.saves)
}

func TestResolveReturnsCachedValuesUnchanged(t *testing.T) {
	store := &fakeCoordinateStore{}
	r := NewResolver(NewEngine(DefaultZoneConfig(), nil), store)
	rec := recordWithRaw("garbage")
	rec.SetCoordinates(1, 2, 3, 4)

	res := r.Resolve(context.Background(), rec)
	assert.Equal(t, CoordinateResult{LegacyLat: 1, LegacyLon: 2, GlobalLat: 3, GlobalLon: 4}, res)
	assert.Equal(t, 0, store.saves)
}

func TestResolvePartialCacheRecomputes(t *testing.T) {
	r := NewResolver(NewEngine(DefaultZoneConfig(), nil), nil)
	rec := recordWithRaw("5432100 7401200")
	lat := 10.0
	rec.LegacyLat = &lat

	res := r.Resolve(context.Background(), rec)
	assert.False(t, res.IsSentinel())
	assert.NotEqual(t, 10.0, res.LegacyLat)
}

func TestForceResolveRecomputesAfterRawEdit(t *testing.T) {
	store := &fakeCoordinateStore{}
	r := NewResolver(NewEngine(DefaultZoneConfig(), nil), store)
	rec := recordWithRaw("not coordinates")

	require.True(t, r.Resolve(context.Background(), rec).IsSentinel())

	fixed := "5432100 7401200"
	rec.RawCoordinates = &fixed
	assert.True(t, r.Resolve(context.Background(), rec).IsSentinel(), "plain resolve keeps the negative cache")

	res, err := r.ForceResolve(context.Background(), rec)
	require.NoError(t, err)
	assert.False(t, res.IsSentinel())
	// initial save, clear, recompute
	assert.Equal(t, 3, store.saves)
}

func TestInvalidateClearsCache(t *testing.T) {
	store := &fakeCoordinateStore{}
	r := NewResolver(NewEngine(DefaultZoneConfig(), nil), store)
	rec := recordWithRaw("5432100 7401200")
	rec.SetCoordinates(1, 2, 3, 4)

	require.NoError(t, r.Invalidate(context.Background(), rec))
	assert.False(t, rec.CoordinatesCached())
	assert.Nil(t, rec.GlobalLat)
	assert.Equal(t, 1, store.saves)
}

func TestRederiveLegacyFromEditedGlobal(t *testing.T) {
	store := &fakeCoordinateStore{}
	engine := NewEngine(DefaultZoneConfig(), nil)
	r := NewResolver(engine, store)
	rec := recordWithRaw("5432100 7401200")
	res := r.Resolve(context.Background(), rec)
	require.False(t, res.IsSentinel())

	require.NoError(t, r.RederiveLegacy(context.Background(), rec, res.GlobalLat, res.GlobalLon))
	assert.Equal(t, 1, store.rawSaves)

	n, e, err := engine.ParseLegacyCoordinates(*rec.RawCoordinates)
	require.NoError(t, err)
	assert.InDelta(t, 5432100, n, 1.5)
	assert.InDelta(t, 7401200, e, 1.5)
	assert.InDelta(t, res.LegacyLat, *rec.LegacyLat, 1e-6)
	assert.Equal(t, res.GlobalLat, *rec.GlobalLat)
}

func TestRederiveLegacyKeepsZoneOfOriginalString(t *testing.T) {
	store := &fakeCoordinateStore{}
	engine := NewEngine(DefaultZoneConfig(), nil)
	r := NewResolver(engine, store)
	rec := recordWithRaw("5432100 7760000")
	res := r.Resolve(context.Background(), rec)
	require.False(t, res.IsSentinel())

	require.NoError(t, r.RederiveLegacy(context.Background(), rec, res.GlobalLat, res.GlobalLon))

	n, e, err := engine.ParseLegacyCoordinates(*rec.RawCoordinates)
	require.NoError(t, err)
	assert.InDelta(t, 5432100, n, 1.5)
	assert.InDelta(t, 7760000, e, 1.5)
}
