// Package transform applies wavenumber-domain filters to gridded potential
// fields.
//
// The grid is treated as one period of a periodic field, so values near the
// edges are affected by wrap-around. Pad the prediction region when that
// matters.
package transform

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"gravmag/pkg/grid"
)

// Filter maps the radial wavenumber |k| (rad/m) to the gain applied to the
// spectrum.
type Filter func(k float64) float64

// Apply filters g in the wavenumber domain and returns a new grid named
// name. The mean of the grid is removed before the transform and restored
// scaled by the filter gain at k = 0.
func Apply(g *grid.Grid, filter Filter, name string) (*grid.Grid, error) {
	de, dn, err := g.Spacing()
	if err != nil {
		return nil, fmt.Errorf("filtering %s: %w", g.Name, err)
	}
	rows, cols := g.Rows(), g.Cols()

	mean := stat.Mean(g.Values, nil)
	centered := make([]float64, len(g.Values))
	for i, v := range g.Values {
		centered[i] = v - mean
	}

	spectrum := fft2D(centered, rows, cols)
	ke := wavenumbers(cols, de)
	kn := wavenumbers(rows, dn)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			spectrum[i*cols+j] *= complex(filter(math.Hypot(ke[j], kn[i])), 0)
		}
	}
	values := ifft2D(spectrum, rows, cols)

	if offset := mean * filter(0); offset != 0 {
		for i := range values {
			values[i] += offset
		}
	}
	out := g.Clone(name)
	out.Values = values
	return out, nil
}

// UpwardContinuation moves the field height meters up with the filter
// exp(-|k|·height). Negative heights continue downward, which amplifies
// noise quickly.
func UpwardContinuation(g *grid.Grid, height float64) (*grid.Grid, error) {
	if math.IsNaN(height) || math.IsInf(height, 0) {
		return nil, fmt.Errorf("invalid continuation height %g", height)
	}
	out, err := Apply(g, func(k float64) float64 { return math.Exp(-k * height) }, g.Name+"_upward")
	if err != nil {
		return nil, err
	}
	out.Upward = g.Upward + height
	return out, nil
}

// DerivativeUpward computes the order-th derivative of the field along the
// upward direction with the filter (-|k|)^order. Units are those of the
// grid per meter^order.
func DerivativeUpward(g *grid.Grid, order int) (*grid.Grid, error) {
	if order < 1 {
		return nil, fmt.Errorf("derivative order must be at least 1, got %d", order)
	}
	return Apply(g, func(k float64) float64 { return math.Pow(-k, float64(order)) }, fmt.Sprintf("%s_dz%d", g.Name, order))
}
