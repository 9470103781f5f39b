package geometry

import "math"

// Vector is a three component vector in (east, north, up) order.
type Vector struct {
	East, North, Up float64
}

// Norm returns the Euclidean length of the vector.
func (v Vector) Norm() float64 { return math.Sqrt(v.East*v.East + v.North*v.North + v.Up*v.Up) }

// IsZero reports whether all components are zero.
func (v Vector) IsZero() bool { return v.East == 0 && v.North == 0 && v.Up == 0 }

// MagnetizationFromAngles builds a magnetization (or field) vector from its
// intensity, inclination and declination. Angles are in degrees; inclination
// is positive downwards and declination is measured clockwise from north.
func MagnetizationFromAngles(intensity, inclination, declination float64) Vector {
	inc := Radians(inclination)
	dec := Radians(declination)
	return Vector{
		East:  intensity * math.Cos(inc) * math.Sin(dec),
		North: intensity * math.Cos(inc) * math.Cos(dec),
		Up:    -intensity * math.Sin(inc),
	}
}

// AnglesFromMagnetization is the inverse of MagnetizationFromAngles.
func AnglesFromMagnetization(v Vector) (intensity, inclination, declination float64) {
	intensity = v.Norm()
	horizontal := math.Hypot(v.East, v.North)
	inclination = Degrees(math.Atan2(-v.Up, horizontal))
	declination = Degrees(math.Atan2(v.East, v.North))
	return intensity, inclination, declination
}
