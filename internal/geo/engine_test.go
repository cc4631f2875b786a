package geo

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLegacyCoordinates(t *testing.T) {
	e := NewEngine(DefaultZoneConfig(), nil)

	tests := []struct {
		name     string
		raw      string
		northing float64
		easting  float64
		wantErr  bool
	}{
		{name: "axis labels", raw: "X=5432100 Y=7401200", northing: 5432100, easting: 7401200},
		{name: "plain pair", raw: "5432100 7401200", northing: 5432100, easting: 7401200},
		{name: "comma separated", raw: "5432100, 7401200", northing: 5432100, easting: 7401200},
		{name: "lowercase with semicolon", raw: "x=5432100; y=7401200", northing: 5432100, easting: 7401200},
		{name: "cyrillic labels", raw: "Х=5432100 У=7401200", northing: 5432100, easting: 7401200},
		{name: "decimal cells", raw: "5432100.0 7401200.0", northing: 5432100, easting: 7401200},
		{name: "northing out of range", raw: "X=99999999 Y=1", wantErr: true},
		{name: "easting out of range", raw: "5432100 1200", wantErr: true},
		{name: "single token", raw: "5432100", wantErr: true},
		{name: "three tokens", raw: "5432100 7401200 12", wantErr: true},
		{name: "text", raw: "near the bridge", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, east, err := e.ParseLegacyCoordinates(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrParse))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.northing, n)
			assert.Equal(t, tt.easting, east)
		})
	}
}

func TestZoneEstimates(t *testing.T) {
	assert.Equal(t, 7, EstimateZone(7401200))
	assert.Equal(t, 7, EstimateZone(7999999))
	assert.Equal(t, 4, EstimateZone(4350000))
	assert.Equal(t, 1, EstimateZone(120000))
	assert.Equal(t, 60, EstimateZone(99000000))

	assert.Equal(t, 7, ZoneForLongitude(39.5))
	assert.Equal(t, 6, ZoneForLongitude(35.99))
	assert.Equal(t, 1, ZoneForLongitude(0))
	assert.Equal(t, 60, ZoneForLongitude(-3))
}

func TestCandidateZonesOrder(t *testing.T) {
	cfg := DefaultZoneConfig()
	got := candidateZones(7, cfg.ForwardPriority)
	assert.Equal(t, []int{7, 9, 10, 8, 11, 12, 5, 6, 4}, got)

	got = candidateZones(37, cfg.InversePriority)
	assert.Equal(t, 37, got[0])
	assert.Len(t, got, len(cfg.InversePriority)+1)
}

func TestCentralMeridianProjection(t *testing.T) {
	tm := NewTransverseMercator(Krassowsky1940, GaussKrugerZone(7))

	n, e := tm.Forward(50, 39)
	assert.InDelta(t, 7500000, e, 1e-6)
	assert.Greater(t, n, 5530000.0)
	assert.Less(t, n, 5550000.0)

	lat, lon := tm.Inverse(n, e)
	assert.InDelta(t, 50, lat, 1e-7)
	assert.InDelta(t, 39, lon, 1e-7)
}

func TestRoundTripThroughInversePath(t *testing.T) {
	e := NewEngine(DefaultZoneConfig(), nil)

	for zone := 4; zone <= 8; zone++ {
		for northing := 4900000.0; northing <= 6200000; northing += 130000 {
			for offset := -150000.0; offset <= 150000; offset += 50000 {
				easting := float64(zone)*1e6 + 500000 + offset

				lat, lon, err := e.ToGlobalDegrees(northing, easting)
				require.NoError(t, err, "zone %d n=%.0f e=%.0f", zone, northing, easting)

				n2, e2, err := e.DegreesToLegacyMeters(lat, lon)
				require.NoError(t, err)
				assert.InDelta(t, northing, n2, 0.01, "northing zone %d", zone)
				assert.InDelta(t, easting, e2, 0.01, "easting zone %d", zone)
			}
		}
	}
}

func TestRoundTripFarFromCentralMeridianKeepsZone(t *testing.T) {
	e := NewEngine(DefaultZoneConfig(), nil)

	for zone := 5; zone <= 8; zone++ {
		for _, offset := range []float64{-300000, -250000, 250000, 300000} {
			northing := 5432100.0
			easting := float64(zone)*1e6 + 500000 + offset

			lat, lon, err := e.ToGlobalDegrees(northing, easting)
			require.NoError(t, err)
			require.NotEqual(t, zone, ZoneForLongitude(lon), "zone %d offset %.0f should leave the band", zone, offset)

			n2, e2, err := e.DegreesToLegacyMetersInZone(lat, lon, EstimateZone(easting))
			require.NoError(t, err)
			assert.InDelta(t, northing, n2, 0.01, "northing zone %d offset %.0f", zone, offset)
			assert.InDelta(t, easting, e2, 0.01, "easting zone %d offset %.0f", zone, offset)

			_, e3, err := e.DegreesToLegacyMeters(lat, lon)
			require.NoError(t, err)
			assert.Equal(t, ZoneForLongitude(lon), EstimateZone(e3))
		}
	}
}

func TestToGlobalDegreesBeyondPoleFails(t *testing.T) {
	e := NewEngine(DefaultZoneConfig(), nil)

	_, _, err := e.ToGlobalDegrees(12500000, 7400000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConversion))

	_, _, err = e.ToGlobalDegrees(math.NaN(), 7400000)
	assert.True(t, errors.Is(err, ErrConversion))
}

func TestDegreesToLegacyMetersRejectsImplausible(t *testing.T) {
	e := NewEngine(DefaultZoneConfig(), nil)

	_, _, err := e.DegreesToLegacyMeters(95, 39)
	assert.True(t, errors.Is(err, ErrConversion))

	// 120°W is more than 140° from every candidate meridian.
	_, _, err = e.DegreesToLegacyMeters(50, -120)
	assert.True(t, errors.Is(err, ErrConversion))
}

func TestDisplayDatumShift(t *testing.T) {
	e := NewEngine(DefaultZoneConfig(), nil)

	lat, lon := 50.45, 30.52
	gLat, gLon := e.DegreesToDisplayDatum(lat, lon)

	// The datum shift is tens of meters, never more than a few hundred.
	assert.Less(t, math.Abs(gLat-lat), 0.003)
	assert.Less(t, math.Abs(gLon-lon), 0.003)
	assert.Greater(t, math.Abs(gLat-lat)+math.Abs(gLon-lon), 1e-5)

	// Rounded to 8 decimal places.
	assert.InDelta(t, gLat, math.Round(gLat*1e8)/1e8, 1e-12)

	bLat, bLon := e.GlobalToLegacyDegrees(gLat, gLon)
	assert.InDelta(t, lat, bLat, 1e-7)
	assert.InDelta(t, lon, bLon, 1e-7)
}

func TestTransformCacheBuildsOnce(t *testing.T) {
	cache := NewTransformCache()
	e := NewEngine(DefaultZoneConfig(), cache)

	_, _, err := e.ToGlobalDegrees(5432100, 7401200)
	require.NoError(t, err)
	_, _, err = e.ToGlobalDegrees(5532100, 7301200)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	builds := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	key := TransformKey{Source: "sk42/test", Target: datumSK42Geodetic}
	results := make([]*TransverseMercator, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = cache.GetOrCreate(key, func() *TransverseMercator {
				mu.Lock()
				builds++
				mu.Unlock()
				return NewTransverseMercator(Krassowsky1940, GaussKrugerZone(5))
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, builds)
	for _, r := range results {
		assert.Same(t, results[0], r)
	}

	cache.Reset()
	assert.Equal(t, 0, cache.Len())
}
