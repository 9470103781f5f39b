package geometry

import (
	"fmt"
	"math"
)

// Coordinates is a batch of observation points in a local Cartesian system.
// The three slices are parallel: point i is (Easting[i], Northing[i], Upward[i]).
// All values are in meters.
type Coordinates struct {
	Easting  []float64
	Northing []float64
	Upward   []float64
}

// NewCoordinates builds a batch from three parallel slices after checking
// their lengths.
func NewCoordinates(easting, northing, upward []float64) (Coordinates, error) {
	c := Coordinates{Easting: easting, Northing: northing, Upward: upward}
	if err := c.Validate(); err != nil {
		return Coordinates{}, err
	}
	return c, nil
}

// Len returns the number of points in the batch.
func (c Coordinates) Len() int { return len(c.Easting) }

// Validate checks that the three coordinate slices have the same length and
// contain only finite values.
func (c Coordinates) Validate() error {
	n := len(c.Easting)
	if len(c.Northing) != n || len(c.Upward) != n {
		return fmt.Errorf("coordinates have lengths (%d, %d, %d): %w",
			len(c.Easting), len(c.Northing), len(c.Upward), ErrShape)
	}
	for i := 0; i < n; i++ {
		if !isFinite(c.Easting[i]) || !isFinite(c.Northing[i]) || !isFinite(c.Upward[i]) {
			return fmt.Errorf("coordinate %d is not finite: %w", i, ErrShape)
		}
	}
	return nil
}

// At returns point i.
func (c Coordinates) At(i int) (easting, northing, upward float64) {
	return c.Easting[i], c.Northing[i], c.Upward[i]
}

// Subset returns a new batch holding the points at the given indices.
func (c Coordinates) Subset(indices []int) Coordinates {
	out := Coordinates{
		Easting:  make([]float64, len(indices)),
		Northing: make([]float64, len(indices)),
		Upward:   make([]float64, len(indices)),
	}
	for k, i := range indices {
		out.Easting[k] = c.Easting[i]
		out.Northing[k] = c.Northing[i]
		out.Upward[k] = c.Upward[i]
	}
	return out
}

// Clone returns a deep copy of the batch.
func (c Coordinates) Clone() Coordinates {
	return Coordinates{
		Easting:  append([]float64(nil), c.Easting...),
		Northing: append([]float64(nil), c.Northing...),
		Upward:   append([]float64(nil), c.Upward...),
	}
}

// Spherical is a batch of points in geocentric spherical coordinates.
// Longitude and Latitude are in degrees, Radius in meters.
type Spherical struct {
	Longitude []float64
	Latitude  []float64
	Radius    []float64
}

// Len returns the number of points in the batch.
func (s Spherical) Len() int { return len(s.Longitude) }

// Validate checks lengths, finiteness, latitude range and non-negative radii.
func (s Spherical) Validate() error {
	n := len(s.Longitude)
	if len(s.Latitude) != n || len(s.Radius) != n {
		return fmt.Errorf("spherical coordinates have lengths (%d, %d, %d): %w",
			len(s.Longitude), len(s.Latitude), len(s.Radius), ErrShape)
	}
	for i := 0; i < n; i++ {
		if !isFinite(s.Longitude[i]) || !isFinite(s.Latitude[i]) || !isFinite(s.Radius[i]) {
			return fmt.Errorf("spherical coordinate %d is not finite: %w", i, ErrShape)
		}
		if s.Latitude[i] < -90 || s.Latitude[i] > 90 {
			return fmt.Errorf("latitude %g of point %d outside [-90, 90]: %w", s.Latitude[i], i, ErrShape)
		}
		if s.Radius[i] < 0 {
			return fmt.Errorf("negative radius %g for point %d: %w", s.Radius[i], i, ErrShape)
		}
	}
	return nil
}

// Subset returns a new batch holding the points at the given indices.
func (s Spherical) Subset(indices []int) Spherical {
	out := Spherical{
		Longitude: make([]float64, len(indices)),
		Latitude:  make([]float64, len(indices)),
		Radius:    make([]float64, len(indices)),
	}
	for k, i := range indices {
		out.Longitude[k] = s.Longitude[i]
		out.Latitude[k] = s.Latitude[i]
		out.Radius[k] = s.Radius[i]
	}
	return out
}

// SphericalToCartesian converts geocentric spherical coordinates into
// geocentric Cartesian ones (x through the prime meridian, z through the
// north pole).
func SphericalToCartesian(longitude, latitude, radius float64) (x, y, z float64) {
	lon := Radians(longitude)
	lat := Radians(latitude)
	cosLat := math.Cos(lat)
	return radius * cosLat * math.Cos(lon), radius * cosLat * math.Sin(lon), radius * math.Sin(lat)
}

// CartesianToSpherical is the inverse of SphericalToCartesian.
func CartesianToSpherical(x, y, z float64) (longitude, latitude, radius float64) {
	radius = math.Sqrt(x*x + y*y + z*z)
	if radius == 0 {
		return 0, 0, 0
	}
	longitude = Degrees(math.Atan2(y, x))
	latitude = Degrees(math.Asin(z / radius))
	return longitude, latitude, radius
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180 }

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 { return rad * 180 / math.Pi }

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
