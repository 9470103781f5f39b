package eqsources

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"gravmag/pkg/forward"
	"gravmag/pkg/geometry"
	"gravmag/pkg/grid"
)

// Layer places point sources on a regular horizontal grid spanning the data
// region, Depth below the lowest datum. The number of sources depends on the
// region and Spacing, not on the number of data.
type Layer struct {
	// Spacing of the source grid. 0 uses the mean data spacing.
	Spacing float64
	// Depth of the layer below the lowest datum. 0 uses DepthFactor times
	// the mean data spacing.
	Depth       float64
	DepthFactor float64
	// Pad extends the layer beyond the data region on every side.
	Pad float64

	Fitting
	fitState[geometry.Coordinates]
}

// NewLayer returns an unfit layer with spacing and depth derived from the
// data.
func NewLayer() *Layer {
	return &Layer{DepthFactor: DefaultDepthFactor, Fitting: DefaultFitting()}
}

// PlaceSources returns the source grid Fit would use for coords.
func (l *Layer) PlaceSources(coords geometry.Coordinates) (geometry.Coordinates, error) {
	if err := coords.Validate(); err != nil {
		return geometry.Coordinates{}, err
	}
	region, err := grid.RegionOf(coords)
	if err != nil {
		return geometry.Coordinates{}, err
	}
	region = region.Pad(l.Pad)
	if err := region.Validate(); err != nil {
		return geometry.Coordinates{}, fmt.Errorf("source layer: %w", err)
	}

	spacing, depth := l.Spacing, l.Depth
	if spacing <= 0 || depth <= 0 {
		mean, err := meanSpacing(coords)
		if err != nil {
			return geometry.Coordinates{}, err
		}
		if spacing <= 0 {
			spacing = mean
		}
		if depth <= 0 {
			factor := l.DepthFactor
			if factor <= 0 {
				factor = DefaultDepthFactor
			}
			depth = factor * mean
		}
	}

	spec := grid.RegularSpec{
		Region:  region,
		Spacing: spacing,
		Upward:  floats.Min(coords.Upward) - depth,
	}
	return spec.Coordinates()
}

// Fit places the layer and solves for the source coefficients.
func (l *Layer) Fit(coords geometry.Coordinates, data, weights []float64) (err error) {
	defer timed(l.logger(), "fit source layer")(&err)
	if err := coords.Validate(); err != nil {
		return err
	}
	if err := checkData(coords.Len(), data, weights); err != nil {
		return err
	}
	sources, err := l.PlaceSources(coords)
	if err != nil {
		return err
	}

	jac := forward.Matrix(coords.Len(), sources.Len(), greens(coords, sources), l.Engine)
	coefs, damping, err := l.solve(jac, data, weights)
	if err != nil {
		return err
	}
	l.store(&fitted[geometry.Coordinates]{sources: sources, coefs: coefs, damping: damping})
	l.logger().Info("source layer fitted", "data", coords.Len(), "sources", sources.Len(), "upward", sources.Upward[0], "damping", damping)
	return nil
}

// Predict evaluates the fitted layer on coords.
func (l *Layer) Predict(coords geometry.Coordinates) ([]float64, error) {
	s, err := l.load()
	if err != nil {
		return nil, err
	}
	if err := coords.Validate(); err != nil {
		return nil, err
	}
	return forward.Sum(coords.Len(), s.coefs, greens(coords, s.sources), l.Engine), nil
}

// Jacobian returns the design matrix of the fitted layer on coords.
func (l *Layer) Jacobian(coords geometry.Coordinates) (*mat.Dense, error) {
	s, err := l.load()
	if err != nil {
		return nil, err
	}
	if err := coords.Validate(); err != nil {
		return nil, err
	}
	return forward.Matrix(coords.Len(), s.sources.Len(), greens(coords, s.sources), l.Engine), nil
}

// Score is the R² of the prediction on coords against data.
func (l *Layer) Score(coords geometry.Coordinates, data, weights []float64) (float64, error) {
	if err := checkData(coords.Len(), data, weights); err != nil {
		return 0, err
	}
	predicted, err := l.Predict(coords)
	if err != nil {
		return 0, err
	}
	return score(predicted, data, weights), nil
}

// SourceCoordinates returns a copy of the fitted source grid.
func (l *Layer) SourceCoordinates() (geometry.Coordinates, error) {
	s, err := l.load()
	if err != nil {
		return geometry.Coordinates{}, err
	}
	return s.sources.Clone(), nil
}
