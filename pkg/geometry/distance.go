package geometry

import "math"

// Distance returns the Euclidean distance between two Cartesian points.
func Distance(e1, n1, u1, e2, n2, u2 float64) float64 {
	de := e2 - e1
	dn := n2 - n1
	du := u2 - u1
	return math.Sqrt(de*de + dn*dn + du*du)
}

// HorizontalDistance returns the distance between two points projected on
// the horizontal plane.
func HorizontalDistance(e1, n1, e2, n2 float64) float64 {
	return math.Hypot(e2-e1, n2-n1)
}

// Haversine returns hav(ψ) = (1 - cos ψ)/2 for the central angle ψ between
// two points given in degrees. It keeps full precision for points a few meters
// apart on an Earth-sized sphere, where 1 - cos ψ would cancel.
func Haversine(lon1, lat1, lon2, lat2 float64) float64 {
	sinDLat := math.Sin(Radians(lat2-lat1) / 2)
	sinDLon := math.Sin(Radians(lon2-lon1) / 2)
	return sinDLat*sinDLat + math.Cos(Radians(lat1))*math.Cos(Radians(lat2))*sinDLon*sinDLon
}

// SphericalDistance returns the Euclidean distance between two points in
// geocentric spherical coordinates.
func SphericalDistance(lon1, lat1, r1, lon2, lat2, r2 float64) float64 {
	hav := Haversine(lon1, lat1, lon2, lat2)
	dr := r1 - r2
	return math.Sqrt(dr*dr + 4*r1*r2*hav)
}

// SafeDiv returns num/den, or 0 when den is zero.
func SafeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
