package geo

import "math"

// Ellipsoid is a reference ellipsoid given by semi-major axis and inverse flattening.
type Ellipsoid struct {
	Name string
	A    float64
	InvF float64
}

var (
	// Krassowsky1940 is the ellipsoid of the SK-42 (Pulkovo 1942) datum.
	Krassowsky1940 = Ellipsoid{Name: "krassowsky_1940", A: 6378245.0, InvF: 298.3}
	WGS84          = Ellipsoid{Name: "wgs84", A: 6378137.0, InvF: 298.257223563}
)

func (e Ellipsoid) flattening() float64 { return 1 / e.InvF }

// eccSquared returns the first eccentricity squared.
func (e Ellipsoid) eccSquared() float64 {
	f := e.flattening()
	return f * (2 - f)
}

// toECEF converts geodetic degrees (height 0) to earth-centered cartesian meters.
func (e Ellipsoid) toECEF(latDeg, lonDeg float64) (x, y, z float64) {
	phi := latDeg * math.Pi / 180
	lam := lonDeg * math.Pi / 180
	e2 := e.eccSquared()
	sinPhi := math.Sin(phi)
	n := e.A / math.Sqrt(1-e2*sinPhi*sinPhi)

	x = n * math.Cos(phi) * math.Cos(lam)
	y = n * math.Cos(phi) * math.Sin(lam)
	z = n * (1 - e2) * sinPhi
	return x, y, z
}

// fromECEF converts cartesian meters back to geodetic degrees, discarding height.
func (e Ellipsoid) fromECEF(x, y, z float64) (latDeg, lonDeg float64) {
	e2 := e.eccSquared()
	p := math.Hypot(x, y)
	lam := math.Atan2(y, x)

	phi := math.Atan2(z, p*(1-e2))
	for i := 0; i < 8; i++ {
		sinPhi := math.Sin(phi)
		n := e.A / math.Sqrt(1-e2*sinPhi*sinPhi)
		h := p/math.Cos(phi) - n
		next := math.Atan2(z, p*(1-e2*n/(n+h)))
		if math.Abs(next-phi) < 1e-14 {
			phi = next
			break
		}
		phi = next
	}
	return phi * 180 / math.Pi, lam * 180 / math.Pi
}

// Helmert holds seven-parameter similarity transform values in the position vector
// convention. Translations in meters, rotations in arc seconds, scale in ppm.
type Helmert struct {
	TX, TY, TZ float64
	RX, RY, RZ float64
	ScalePPM   float64
}

// SK42ToWGS84 is the GOST R 51794-2008 parameter set.
var SK42ToWGS84 = Helmert{
	TX: 23.57, TY: -140.95, TZ: -79.8,
	RX: 0, RY: -0.35, RZ: -0.79,
	ScalePPM: -0.22,
}

const arcSecond = math.Pi / (180 * 3600)

func (h Helmert) apply(x, y, z float64) (float64, float64, float64) {
	rx, ry, rz := h.RX*arcSecond, h.RY*arcSecond, h.RZ*arcSecond
	m := 1 + h.ScalePPM*1e-6
	return h.TX + m*(x-rz*y+ry*z),
		h.TY + m*(rz*x+y-rx*z),
		h.TZ + m*(-ry*x+rx*y+z)
}

// Inverse returns the approximate reverse transform. The error of negating the
// parameters is well below a millimeter for rotations of a few arc seconds.
func (h Helmert) Inverse() Helmert {
	return Helmert{
		TX: -h.TX, TY: -h.TY, TZ: -h.TZ,
		RX: -h.RX, RY: -h.RY, RZ: -h.RZ,
		ScalePPM: -h.ScalePPM,
	}
}

// datumShift moves geodetic degrees from one ellipsoid to another through ECEF.
type datumShift struct {
	from, to Ellipsoid
	params   Helmert
}

func (d datumShift) convert(latDeg, lonDeg float64) (float64, float64) {
	x, y, z := d.from.toECEF(latDeg, lonDeg)
	x, y, z = d.params.apply(x, y, z)
	return d.to.fromECEF(x, y, z)
}
