package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrParse      = errors.New("malformed legacy coordinates")
	ErrConversion = errors.New("no plausible zone for coordinates")
)

const (
	datumSK42Geodetic = "sk42/geodetic"
	datumWGS84        = "wgs84/geodetic"
)

// Range is a closed numeric interval.
type Range struct {
	Min float64
	Max float64
}

func (r Range) Contains(v float64) bool {
	return !math.IsNaN(v) && v >= r.Min && v <= r.Max
}

// ZoneConfig is the candidate search policy of the engine.
type ZoneConfig struct {
	// ForwardPriority is tried after the zone estimated from the easting prefix.
	ForwardPriority []int
	// InversePriority is tried after the zone estimated from longitude.
	InversePriority []int
	// Fallback is the last parameter set tried before giving up on a forward conversion.
	Fallback ZoneParams

	Northing  Range
	Easting   Range
	Latitude  Range
	Longitude Range
}

// DefaultZoneConfig covers zones common in the operating area (6°E to 48°E).
func DefaultZoneConfig() ZoneConfig {
	return ZoneConfig{
		ForwardPriority: []int{9, 10, 8, 11, 7, 12, 5, 6, 4},
		InversePriority: []int{7, 6, 5, 4, 9, 10, 8, 11, 12},
		Fallback: ZoneParams{
			Name:            "generic-unprefixed",
			CentralMeridian: 39,
			FalseEasting:    500000,
			Scale:           1,
		},
		Northing:  Range{Min: 4000000, Max: 13000000},
		Easting:   Range{Min: 2000000, Max: 9000000},
		Latitude:  Range{Min: -90, Max: 90},
		Longitude: Range{Min: -180, Max: 180},
	}
}

// Engine converts between the legacy SK-42 Gauss-Krüger grid (Datum-A),
// SK-42 geodetic degrees (Datum-B) and WGS 84 degrees (Datum-C).
type Engine struct {
	cfg   ZoneConfig
	cache *TransformCache
	shift datumShift
	back  datumShift
}

// NewEngine builds an engine. A nil cache gets a private one.
func NewEngine(cfg ZoneConfig, cache *TransformCache) *Engine {
	if cache == nil {
		cache = NewTransformCache()
	}
	return &Engine{
		cfg:   cfg,
		cache: cache,
		shift: datumShift{from: Krassowsky1940, to: WGS84, params: SK42ToWGS84},
		back:  datumShift{from: WGS84, to: Krassowsky1940, params: SK42ToWGS84.Inverse()},
	}
}

func (e *Engine) Config() ZoneConfig { return e.cfg }

// ParseLegacyCoordinates reads "northing easting" from free text such as
// "X=5432100 Y=7401200" or "5432100, 7401200".
func (e *Engine) ParseLegacyCoordinates(raw string) (northing, easting float64, err error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case 'x', 'y', 'X', 'Y', 'х', 'у', 'Х', 'У', '=', ':':
			return -1
		case ',', ';', '\t':
			return ' '
		}
		return r
	}, raw)

	fields := strings.Fields(cleaned)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("%w: expected 2 numeric tokens, got %d in %q", ErrParse, len(fields), raw)
	}

	northing, err = strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: northing %q", ErrParse, fields[0])
	}
	easting, err = strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: easting %q", ErrParse, fields[1])
	}

	if !e.cfg.Northing.Contains(northing) || !e.cfg.Easting.Contains(easting) {
		return 0, 0, fmt.Errorf("%w: northing %.0f or easting %.0f out of range", ErrParse, northing, easting)
	}
	return northing, easting, nil
}

// EstimateZone reads the zone number from the easting prefix, clamped to 1..60.
func EstimateZone(easting float64) int {
	return clampZone(int(math.Floor(easting / 1e6)))
}

// ZoneForLongitude returns the 6-degree zone containing lon, clamped to 1..60.
func ZoneForLongitude(lon float64) int {
	l := math.Mod(lon, 360)
	if l < 0 {
		l += 360
	}
	return clampZone(int(math.Floor(l/6)) + 1)
}

func clampZone(z int) int {
	if z < 1 {
		return 1
	}
	if z > 60 {
		return 60
	}
	return z
}

// candidateZones returns estimated first, then priority, without repeats.
func candidateZones(estimated int, priority []int) []int {
	out := make([]int, 0, len(priority)+1)
	seen := make(map[int]bool, len(priority)+1)
	for _, z := range append([]int{estimated}, priority...) {
		if z < 1 || z > 60 || seen[z] {
			continue
		}
		seen[z] = true
		out = append(out, z)
	}
	return out
}

func (e *Engine) projection(p ZoneParams) *TransverseMercator {
	key := TransformKey{Source: "sk42/" + p.Name, Target: datumSK42Geodetic}
	return e.cache.GetOrCreate(key, func() *TransverseMercator {
		return NewTransverseMercator(Krassowsky1940, p)
	})
}

func (e *Engine) plausibleDegrees(lat, lon float64) bool {
	return e.cfg.Latitude.Contains(lat) && e.cfg.Longitude.Contains(lon)
}

func (e *Engine) plausibleMeters(northing, easting float64) bool {
	return e.cfg.Northing.Contains(northing) && e.cfg.Easting.Contains(easting)
}

// ToGlobalDegrees converts legacy grid meters to SK-42 geodetic degrees by
// trying candidate zones until one yields a plausible position.
func (e *Engine) ToGlobalDegrees(northing, easting float64) (lat, lon float64, err error) {
	candidates := candidateZones(EstimateZone(easting), e.cfg.ForwardPriority)
	for _, zone := range candidates {
		lat, lon = e.projection(GaussKrugerZone(zone)).Inverse(northing, easting)
		if e.plausibleDegrees(lat, lon) {
			return lat, lon, nil
		}
	}

	lat, lon = e.projection(e.cfg.Fallback).Inverse(northing, easting)
	if e.plausibleDegrees(lat, lon) {
		return lat, lon, nil
	}
	return 0, 0, fmt.Errorf("%w: northing %.0f easting %.0f after %d zones", ErrConversion, northing, easting, len(candidates)+1)
}

// DegreesToLegacyMeters projects SK-42 geodetic degrees back onto the legacy grid,
// in the zone whose meridian band contains lon. Eastings more than about half a
// band from the central meridian were written in a neighbouring zone and only
// round-trip through DegreesToLegacyMetersInZone.
func (e *Engine) DegreesToLegacyMeters(lat, lon float64) (northing, easting float64, err error) {
	return e.DegreesToLegacyMetersInZone(lat, lon, 0)
}

// DegreesToLegacyMetersInZone is DegreesToLegacyMeters with a preferred zone,
// usually read from the easting prefix of the original string. Zone 0 means unknown.
func (e *Engine) DegreesToLegacyMetersInZone(lat, lon float64, zone int) (northing, easting float64, err error) {
	if !e.plausibleDegrees(lat, lon) {
		return 0, 0, fmt.Errorf("%w: lat %f lon %f", ErrConversion, lat, lon)
	}
	priority := e.cfg.InversePriority
	estimated := ZoneForLongitude(lon)
	if zone > 0 {
		priority = append([]int{estimated}, priority...)
		estimated = zone
	}
	candidates := candidateZones(estimated, priority)
	for _, z := range candidates {
		northing, easting = e.projection(GaussKrugerZone(z)).Forward(lat, lon)
		if e.plausibleMeters(northing, easting) {
			return northing, easting, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: lat %f lon %f after %d zones", ErrConversion, lat, lon, len(candidates))
}

// DegreesToDisplayDatum shifts SK-42 geodetic degrees to WGS 84, rounded to 8 places.
func (e *Engine) DegreesToDisplayDatum(lat, lon float64) (float64, float64) {
	wLat, wLon := e.shift.convert(lat, lon)
	return round8(wLat), round8(wLon)
}

// GlobalToLegacyDegrees shifts WGS 84 degrees back to SK-42 geodetic degrees.
func (e *Engine) GlobalToLegacyDegrees(lat, lon float64) (float64, float64) {
	return e.back.convert(lat, lon)
}

func round8(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}
