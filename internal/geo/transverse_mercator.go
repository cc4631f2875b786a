package geo

import (
	"fmt"
	"math"
)

// ZoneParams describes one transverse Mercator parameterisation of the legacy grid.
type ZoneParams struct {
	Name            string
	CentralMeridian float64
	FalseEasting    float64
	FalseNorthing   float64
	Scale           float64
}

// GaussKrugerZone returns the 6-degree SK-42 zone with the zone number
// prefixed to the easting (zone 7 → false easting 7 500 000).
func GaussKrugerZone(zone int) ZoneParams {
	return ZoneParams{
		Name:            fmt.Sprintf("gk-zone-%02d", zone),
		CentralMeridian: float64(6*zone - 3),
		FalseEasting:    float64(zone)*1e6 + 500000,
		FalseNorthing:   0,
		Scale:           1,
	}
}

// TransverseMercator is a Krüger n-series projection on one ellipsoid.
// Construction precomputes the series coefficients.
type TransverseMercator struct {
	params ZoneParams
	lon0   float64
	ecc    float64
	radius float64

	alpha [3]float64
	beta  [3]float64
	delta [3]float64
}

func NewTransverseMercator(el Ellipsoid, p ZoneParams) *TransverseMercator {
	f := el.flattening()
	n := f / (2 - f)
	n2, n3 := n*n, n*n*n

	scale := p.Scale
	if scale == 0 {
		scale = 1
	}
	p.Scale = scale

	return &TransverseMercator{
		params: p,
		lon0:   p.CentralMeridian * math.Pi / 180,
		ecc:    math.Sqrt(el.eccSquared()),
		radius: el.A / (1 + n) * (1 + n2/4 + n2*n2/64),
		alpha: [3]float64{
			n/2 - 2*n2/3 + 5*n3/16,
			13*n2/48 - 3*n3/5,
			61 * n3 / 240,
		},
		beta: [3]float64{
			n/2 - 2*n2/3 + 37*n3/96,
			n2/48 + n3/15,
			17 * n3 / 480,
		},
		delta: [3]float64{
			2*n - 2*n2/3 - 2*n3,
			7*n2/3 - 8*n3/5,
			56 * n3 / 15,
		},
	}
}

// Forward projects geodetic degrees to grid meters.
func (tm *TransverseMercator) Forward(latDeg, lonDeg float64) (northing, easting float64) {
	phi := latDeg * math.Pi / 180
	dLam := lonDeg*math.Pi/180 - tm.lon0

	sinPhi := math.Sin(phi)
	t := math.Sinh(math.Atanh(sinPhi) - tm.ecc*math.Atanh(tm.ecc*sinPhi))
	xiP := math.Atan2(t, math.Cos(dLam))
	etaP := math.Atanh(math.Sin(dLam) / math.Sqrt(1+t*t))

	xi, eta := xiP, etaP
	for j := 1; j <= 3; j++ {
		a := tm.alpha[j-1]
		k := float64(2 * j)
		xi += a * math.Sin(k*xiP) * math.Cosh(k*etaP)
		eta += a * math.Cos(k*xiP) * math.Sinh(k*etaP)
	}

	kA := tm.params.Scale * tm.radius
	return tm.params.FalseNorthing + kA*xi, tm.params.FalseEasting + kA*eta
}

// Inverse unprojects grid meters to geodetic degrees. Points beyond a pole
// come back as NaN.
func (tm *TransverseMercator) Inverse(northing, easting float64) (latDeg, lonDeg float64) {
	kA := tm.params.Scale * tm.radius
	xi := (northing - tm.params.FalseNorthing) / kA
	eta := (easting - tm.params.FalseEasting) / kA
	if math.Abs(xi) > math.Pi/2 {
		return math.NaN(), math.NaN()
	}

	xiP, etaP := xi, eta
	for j := 1; j <= 3; j++ {
		b := tm.beta[j-1]
		k := float64(2 * j)
		xiP -= b * math.Sin(k*xi) * math.Cosh(k*eta)
		etaP -= b * math.Cos(k*xi) * math.Sinh(k*eta)
	}

	chi := math.Asin(math.Sin(xiP) / math.Cosh(etaP))
	phi := chi
	for j := 1; j <= 3; j++ {
		phi += tm.delta[j-1] * math.Sin(float64(2*j)*chi)
	}
	lam := tm.lon0 + math.Atan2(math.Sinh(etaP), math.Cos(xiP))

	return phi * 180 / math.Pi, lam * 180 / math.Pi
}

// Params returns the zone parameters the projection was built with.
func (tm *TransverseMercator) Params() ZoneParams {
	return tm.params
}
