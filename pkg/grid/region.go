// Package grid builds regular grids and profiles of observation points and
// reshapes model predictions made on them.
package grid

import (
	"fmt"
	"math"

	"gravmag/pkg/geometry"
)

// Region is a horizontal bounding box in meters.
type Region struct {
	West, East, South, North float64
}

// Validate rejects regions with zero or negative extent in either direction.
func (r Region) Validate() error {
	for _, v := range []float64{r.West, r.East, r.South, r.North} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("region %v is not finite: %w", r, geometry.ErrDegenerateGeometry)
		}
	}
	if r.West >= r.East || r.South >= r.North {
		return fmt.Errorf("region %v has no area: %w", r, geometry.ErrDegenerateGeometry)
	}
	return nil
}

// Width is East - West.
func (r Region) Width() float64 { return r.East - r.West }

// Height is North - South.
func (r Region) Height() float64 { return r.North - r.South }

// Pad grows the region by pad on every side. A negative pad shrinks it.
func (r Region) Pad(pad float64) Region {
	return Region{West: r.West - pad, East: r.East + pad, South: r.South - pad, North: r.North + pad}
}

// Contains reports whether (easting, northing) lies in the closed region.
func (r Region) Contains(easting, northing float64) bool {
	return easting >= r.West && easting <= r.East && northing >= r.South && northing <= r.North
}

func (r Region) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", r.West, r.East, r.South, r.North)
}

// RegionOf returns the bounding region of a batch of points. The region may
// have zero extent; callers that need an area should Validate it.
func RegionOf(coords geometry.Coordinates) (Region, error) {
	if err := coords.Validate(); err != nil {
		return Region{}, err
	}
	if coords.Len() == 0 {
		return Region{}, fmt.Errorf("region of an empty batch: %w", geometry.ErrDegenerateGeometry)
	}
	r := Region{
		West: math.Inf(1), East: math.Inf(-1),
		South: math.Inf(1), North: math.Inf(-1),
	}
	for i := range coords.Easting {
		r.West = math.Min(r.West, coords.Easting[i])
		r.East = math.Max(r.East, coords.Easting[i])
		r.South = math.Min(r.South, coords.Northing[i])
		r.North = math.Max(r.North, coords.Northing[i])
	}
	return r, nil
}

// Pad is Region.Pad.
func Pad(r Region, pad float64) Region { return r.Pad(pad) }
