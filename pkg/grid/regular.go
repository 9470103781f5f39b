package grid

import (
	"fmt"
	"math"

	"gravmag/pkg/geometry"
)

// RegularSpec describes a regular grid over a region at a constant height.
// Give either the shape (Rows, Cols) or Spacing. With Spacing, the number of
// nodes is rounded and the spacing adjusted so the grid spans the region
// exactly.
type RegularSpec struct {
	Region  Region
	Rows    int // along northing
	Cols    int // along easting
	Spacing float64
	Upward  float64
}

// Shape resolves the grid shape.
func (s RegularSpec) Shape() (rows, cols int, err error) {
	if err := s.Region.Validate(); err != nil {
		return 0, 0, err
	}
	hasShape := s.Rows != 0 || s.Cols != 0
	switch {
	case hasShape && s.Spacing != 0:
		return 0, 0, fmt.Errorf("grid needs either a shape or a spacing, not both: %w", geometry.ErrShape)
	case hasShape:
		if s.Rows < 2 || s.Cols < 2 {
			return 0, 0, fmt.Errorf("grid shape (%d, %d) needs at least 2 nodes per axis: %w", s.Rows, s.Cols, geometry.ErrShape)
		}
		return s.Rows, s.Cols, nil
	case s.Spacing > 0 && !math.IsInf(s.Spacing, 0):
		rows = int(math.Round(s.Region.Height()/s.Spacing)) + 1
		cols = int(math.Round(s.Region.Width()/s.Spacing)) + 1
		return max(rows, 2), max(cols, 2), nil
	}
	return 0, 0, fmt.Errorf("invalid grid spacing %g: %w", s.Spacing, geometry.ErrShape)
}

// Axes returns the easting (columns) and northing (rows) node coordinates.
func (s RegularSpec) Axes() (easting, northing []float64, err error) {
	rows, cols, err := s.Shape()
	if err != nil {
		return nil, nil, err
	}
	return linspace(s.Region.West, s.Region.East, cols), linspace(s.Region.South, s.Region.North, rows), nil
}

// Coordinates returns the grid nodes in row-major order: northing varies
// slowest.
func (s RegularSpec) Coordinates() (geometry.Coordinates, error) {
	easting, northing, err := s.Axes()
	if err != nil {
		return geometry.Coordinates{}, err
	}
	return meshgrid(easting, northing, s.Upward), nil
}

func meshgrid(easting, northing []float64, upward float64) geometry.Coordinates {
	n := len(easting) * len(northing)
	c := geometry.Coordinates{
		Easting:  make([]float64, 0, n),
		Northing: make([]float64, 0, n),
		Upward:   make([]float64, 0, n),
	}
	for _, y := range northing {
		for _, x := range easting {
			c.Easting = append(c.Easting, x)
			c.Northing = append(c.Northing, y)
			c.Upward = append(c.Upward, upward)
		}
	}
	return c
}

// linspace returns n evenly spaced values from start to stop inclusive.
func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

// Profile is a straight line of evenly spaced points at a constant height.
type Profile struct {
	Point1, Point2 [2]float64 // (easting, northing)
	Size           int
	Upward         float64
}

// Coordinates returns the profile points and their distance from Point1.
func (p Profile) Coordinates() (geometry.Coordinates, []float64, error) {
	if p.Size < 2 {
		return geometry.Coordinates{}, nil, fmt.Errorf("profile needs at least 2 points, got %d: %w", p.Size, geometry.ErrShape)
	}
	length := geometry.HorizontalDistance(p.Point1[0], p.Point1[1], p.Point2[0], p.Point2[1])
	if length == 0 {
		return geometry.Coordinates{}, nil, fmt.Errorf("profile end points coincide: %w", geometry.ErrDegenerateGeometry)
	}
	c := geometry.Coordinates{
		Easting:  linspace(p.Point1[0], p.Point2[0], p.Size),
		Northing: linspace(p.Point1[1], p.Point2[1], p.Size),
		Upward:   make([]float64, p.Size),
	}
	for i := range c.Upward {
		c.Upward[i] = p.Upward
	}
	return c, linspace(0, length, p.Size), nil
}
