package grid

import (
	"fmt"
	"math"

	"gravmag/pkg/geometry"
)

// Predictor is anything that evaluates a field on a batch of points, such
// as a fitted equivalent source model.
type Predictor interface {
	Predict(coords geometry.Coordinates) ([]float64, error)
}

// Grid is a named scalar field on a regular grid.
type Grid struct {
	Name string

	// Easting holds the column coordinates, Northing the row coordinates.
	Easting  []float64
	Northing []float64
	Upward   float64

	// Values is the field in row-major order (row = northing index).
	Values []float64
}

// New wraps values laid out in row-major order over the given axes.
func New(name string, easting, northing []float64, upward float64, values []float64) (*Grid, error) {
	if len(values) != len(easting)*len(northing) {
		return nil, fmt.Errorf("%d values for a %d×%d grid: %w", len(values), len(northing), len(easting), geometry.ErrShape)
	}
	return &Grid{Name: name, Easting: easting, Northing: northing, Upward: upward, Values: values}, nil
}

// Rows is the number of northing nodes.
func (g *Grid) Rows() int { return len(g.Northing) }

// Cols is the number of easting nodes.
func (g *Grid) Cols() int { return len(g.Easting) }

// At returns the value at (row, col).
func (g *Grid) At(row, col int) float64 { return g.Values[row*g.Cols()+col] }

// Set stores the value at (row, col).
func (g *Grid) Set(row, col int, v float64) { g.Values[row*g.Cols()+col] = v }

// Region is the area covered by the grid nodes.
func (g *Grid) Region() Region {
	return Region{
		West: g.Easting[0], East: g.Easting[len(g.Easting)-1],
		South: g.Northing[0], North: g.Northing[len(g.Northing)-1],
	}
}

// Coordinates returns the grid nodes in the same order as Values.
func (g *Grid) Coordinates() geometry.Coordinates {
	return meshgrid(g.Easting, g.Northing, g.Upward)
}

// Spacing returns the node spacing along easting and northing. It fails
// when an axis has fewer than two nodes or is not evenly spaced.
func (g *Grid) Spacing() (de, dn float64, err error) {
	de, err = axisSpacing(g.Easting)
	if err != nil {
		return 0, 0, fmt.Errorf("easting: %w", err)
	}
	dn, err = axisSpacing(g.Northing)
	if err != nil {
		return 0, 0, fmt.Errorf("northing: %w", err)
	}
	return de, dn, nil
}

// Clone returns a deep copy with a new name.
func (g *Grid) Clone(name string) *Grid {
	return &Grid{
		Name:     name,
		Easting:  append([]float64(nil), g.Easting...),
		Northing: append([]float64(nil), g.Northing...),
		Upward:   g.Upward,
		Values:   append([]float64(nil), g.Values...),
	}
}

const spacingTolerance = 1e-6

func axisSpacing(axis []float64) (float64, error) {
	if len(axis) < 2 {
		return 0, fmt.Errorf("axis has %d nodes: %w", len(axis), geometry.ErrShape)
	}
	step := (axis[len(axis)-1] - axis[0]) / float64(len(axis)-1)
	if step <= 0 {
		return 0, fmt.Errorf("axis is not increasing: %w", geometry.ErrShape)
	}
	for i := 1; i < len(axis); i++ {
		if math.Abs(axis[i]-axis[i-1]-step) > spacingTolerance*step {
			return 0, fmt.Errorf("axis is not evenly spaced at node %d: %w", i, geometry.ErrShape)
		}
	}
	return step, nil
}

// PredictGrid evaluates p on the nodes of spec and reshapes the result.
func PredictGrid(p Predictor, spec RegularSpec, name string) (*Grid, error) {
	easting, northing, err := spec.Axes()
	if err != nil {
		return nil, err
	}
	values, err := p.Predict(meshgrid(easting, northing, spec.Upward))
	if err != nil {
		return nil, err
	}
	return New(name, easting, northing, spec.Upward, values)
}

// ProfileResult holds a prediction along a profile.
type ProfileResult struct {
	Coordinates geometry.Coordinates
	Distance    []float64
	Values      []float64
}

// PredictProfile evaluates p along the profile.
func PredictProfile(p Predictor, profile Profile) (ProfileResult, error) {
	coords, distance, err := profile.Coordinates()
	if err != nil {
		return ProfileResult{}, err
	}
	values, err := p.Predict(coords)
	if err != nil {
		return ProfileResult{}, err
	}
	if len(values) != len(distance) {
		return ProfileResult{}, fmt.Errorf("predictor returned %d values for %d points: %w", len(values), len(distance), geometry.ErrShape)
	}
	return ProfileResult{Coordinates: coords, Distance: distance, Values: values}, nil
}
