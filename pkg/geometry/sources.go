package geometry

import (
	"fmt"
	"math"
)

// Prism is a right rectangular prism aligned with the Cartesian axes.
// Bounds are in meters.
type Prism struct {
	West, East   float64
	South, North float64
	Bottom, Top  float64
}

// NewPrismFromSlice builds a prism from a [west, east, south, north, bottom, top] slice.
func NewPrismFromSlice(b []float64) (Prism, error) {
	if len(b) != 6 {
		return Prism{}, fmt.Errorf("prism needs 6 boundaries, got %d: %w", len(b), ErrShape)
	}
	return Prism{West: b[0], East: b[1], South: b[2], North: b[3], Bottom: b[4], Top: b[5]}, nil
}

// Validate rejects prisms whose bounds are inverted or not finite. Prisms with
// a zero extent along any axis are valid: they are null bodies producing no
// field.
func (p Prism) Validate() error {
	for _, v := range []float64{p.West, p.East, p.South, p.North, p.Bottom, p.Top} {
		if !isFinite(v) {
			return fmt.Errorf("prism %v has non-finite boundaries: %w", p, ErrDegenerateGeometry)
		}
	}
	if p.West > p.East {
		return fmt.Errorf("prism west %g greater than east %g: %w", p.West, p.East, ErrDegenerateGeometry)
	}
	if p.South > p.North {
		return fmt.Errorf("prism south %g greater than north %g: %w", p.South, p.North, ErrDegenerateGeometry)
	}
	if p.Bottom > p.Top {
		return fmt.Errorf("prism bottom %g greater than top %g: %w", p.Bottom, p.Top, ErrDegenerateGeometry)
	}
	return nil
}

// IsNull reports whether the prism has zero volume.
func (p Prism) IsNull() bool {
	return p.West == p.East || p.South == p.North || p.Bottom == p.Top
}

// Center returns the geometric center of the prism.
func (p Prism) Center() (easting, northing, upward float64) {
	return (p.West + p.East) / 2, (p.South + p.North) / 2, (p.Bottom + p.Top) / 2
}

// Volume returns the volume of the prism in m³.
func (p Prism) Volume() float64 {
	return (p.East - p.West) * (p.North - p.South) * (p.Top - p.Bottom)
}

// ValidatePrisms runs Validate on every prism and reports the first failure
// with its index.
func ValidatePrisms(prisms []Prism) error {
	for i, p := range prisms {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("prism %d: %w", i, err)
		}
	}
	return nil
}

// Tesseroid is a spherical-shell cell bounded by meridians, parallels and two
// concentric spheres. Longitudes and latitudes are in degrees, radii in meters.
type Tesseroid struct {
	West, East   float64
	South, North float64
	Bottom, Top  float64
}

// Validate checks the tesseroid boundaries.
func (t Tesseroid) Validate() error {
	for _, v := range []float64{t.West, t.East, t.South, t.North, t.Bottom, t.Top} {
		if !isFinite(v) {
			return fmt.Errorf("tesseroid %v has non-finite boundaries: %w", t, ErrDegenerateGeometry)
		}
	}
	if t.West >= t.East {
		return fmt.Errorf("tesseroid west %g not less than east %g: %w", t.West, t.East, ErrDegenerateGeometry)
	}
	if t.East-t.West > 360 {
		return fmt.Errorf("tesseroid spans more than 360 degrees of longitude: %w", ErrDegenerateGeometry)
	}
	if t.South >= t.North {
		return fmt.Errorf("tesseroid south %g not less than north %g: %w", t.South, t.North, ErrDegenerateGeometry)
	}
	if t.South < -90 || t.North > 90 {
		return fmt.Errorf("tesseroid latitudes [%g, %g] outside [-90, 90]: %w", t.South, t.North, ErrDegenerateGeometry)
	}
	if t.Bottom < 0 || t.Bottom >= t.Top {
		return fmt.Errorf("tesseroid radii [%g, %g] invalid: %w", t.Bottom, t.Top, ErrDegenerateGeometry)
	}
	return nil
}

// Center returns the longitude, latitude and radius of the tesseroid center.
func (t Tesseroid) Center() (longitude, latitude, radius float64) {
	return (t.West + t.East) / 2, (t.South + t.North) / 2, (t.Bottom + t.Top) / 2
}

// Dimensions returns the arc lengths along longitude and latitude measured on
// the top sphere, and the radial thickness. The longitudinal arc is taken
// along the central parallel.
func (t Tesseroid) Dimensions() (lLon, lLat, lRad float64) {
	latCenter := Radians((t.South + t.North) / 2)
	halfWidth := Radians(t.East-t.West) / 2
	arg := math.Cos(latCenter) * math.Sin(halfWidth)
	if arg > 1 {
		arg = 1
	}
	lLon = t.Top * 2 * math.Asin(arg)
	lLat = t.Top * Radians(t.North-t.South)
	lRad = t.Top - t.Bottom
	return lLon, lLat, lRad
}

// Volume returns the exact volume of the tesseroid in m³.
func (t Tesseroid) Volume() float64 {
	return Radians(t.East-t.West) *
		(math.Sin(Radians(t.North)) - math.Sin(Radians(t.South))) *
		(t.Top*t.Top*t.Top - t.Bottom*t.Bottom*t.Bottom) / 3
}

// Contains reports whether a point lies strictly inside the tesseroid. The
// longitude of the point is wrapped into the tesseroid's longitude window.
func (t Tesseroid) Contains(longitude, latitude, radius float64) bool {
	lon := math.Mod(longitude-t.West, 360)
	if lon < 0 {
		lon += 360
	}
	lon += t.West
	return lon > t.West && lon < t.East &&
		latitude > t.South && latitude < t.North &&
		radius > t.Bottom && radius < t.Top
}

// ValidateTesseroids runs Validate on every tesseroid.
func ValidateTesseroids(tesseroids []Tesseroid) error {
	for i, t := range tesseroids {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tesseroid %d: %w", i, err)
		}
	}
	return nil
}
