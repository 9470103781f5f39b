package geometry

import "math"

// Ellipsoid is an oblate ellipsoid of revolution used as a reference for
// geodetic coordinates.
type Ellipsoid struct {
	Name              string
	SemimajorAxis     float64 // a, m
	InverseFlattening float64 // 1/f
}

// WGS84 is the World Geodetic System 1984 reference ellipsoid.
var WGS84 = Ellipsoid{
	Name:              "WGS84",
	SemimajorAxis:     6378137.0,
	InverseFlattening: 298.257223563,
}

// Flattening returns f.
func (e Ellipsoid) Flattening() float64 { return 1 / e.InverseFlattening }

// SemiminorAxis returns b = a(1 - f).
func (e Ellipsoid) SemiminorAxis() float64 { return e.SemimajorAxis * (1 - e.Flattening()) }

// FirstEccentricitySq returns e² = f(2 - f).
func (e Ellipsoid) FirstEccentricitySq() float64 {
	f := e.Flattening()
	return f * (2 - f)
}

// GeodeticToSpherical converts geodetic longitude, latitude (degrees) and
// ellipsoidal height (m) into geocentric spherical longitude, latitude and
// radius.
func (e Ellipsoid) GeodeticToSpherical(longitude, latitude, height float64) (float64, float64, float64) {
	lat := Radians(latitude)
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	e2 := e.FirstEccentricitySq()

	primeVertical := e.SemimajorAxis / math.Sqrt(1-e2*sinLat*sinLat)
	xy := (height + primeVertical) * cosLat
	z := (height + (1-e2)*primeVertical) * sinLat
	radius := math.Hypot(xy, z)

	return longitude, Degrees(math.Asin(z / radius)), radius
}

// SphericalToGeodetic is the inverse of GeodeticToSpherical. It uses the
// closed-form solution of Vermeille (2002), so no iteration is needed.
func (e Ellipsoid) SphericalToGeodetic(longitude, sphericalLatitude, radius float64) (float64, float64, float64) {
	lat := Radians(sphericalLatitude)
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	a := e.SemimajorAxis
	e2 := e.FirstEccentricitySq()
	e4 := e2 * e2

	bigZ := radius * sinLat
	p0 := radius * radius * cosLat * cosLat / (a * a)
	q0 := (1 - e2) / (a * a) * bigZ * bigZ
	r0 := (p0 + q0 - e4) / 6
	s0 := e4 * p0 * q0 / 4 / (r0 * r0 * r0)
	t0 := math.Cbrt(1 + s0 + math.Sqrt(2*s0+s0*s0))
	u0 := r0 * (1 + t0 + 1/t0)
	v0 := math.Sqrt(u0*u0 + q0*e4)
	w0 := e2 * (u0 + v0 - q0) / 2 / v0
	k := math.Sqrt(u0+v0+w0*w0) - w0
	bigD := k * radius * cosLat / (k + e2)

	hyp := math.Hypot(bigD, bigZ)
	latitude := Degrees(2 * math.Atan(bigZ/(bigD+hyp)))
	height := (k + e2 - 1) / k * hyp
	return longitude, latitude, height
}
