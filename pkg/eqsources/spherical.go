package eqsources

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"gravmag/pkg/forward"
	"gravmag/pkg/geometry"
	"gravmag/pkg/kernels"
)

// Spherical are point sources in geocentric spherical coordinates, one under
// each datum, for data covering a large part of the globe. Its methods
// mirror Model with spherical coordinates.
type Spherical struct {
	// Depth below each datum. 0 uses DepthFactor times the mean
	// nearest-neighbour distance between data.
	Depth       float64
	DepthFactor float64

	Fitting
	fitState[geometry.Spherical]
}

// NewSpherical returns an unfit spherical model.
func NewSpherical() *Spherical {
	return &Spherical{DepthFactor: DefaultDepthFactor, Fitting: DefaultFitting()}
}

// PlaceSources returns the source positions Fit would use for coords.
func (s *Spherical) PlaceSources(coords geometry.Spherical) (geometry.Spherical, error) {
	if err := coords.Validate(); err != nil {
		return geometry.Spherical{}, err
	}
	if coords.Len() < 2 {
		return geometry.Spherical{}, fmt.Errorf("spherical sources need at least 2 data: %w", geometry.ErrDegenerateGeometry)
	}

	depth := s.Depth
	if depth <= 0 {
		pts := make([]point, coords.Len())
		for i := range pts {
			x, y, z := geometry.SphericalToCartesian(coords.Longitude[i], coords.Latitude[i], coords.Radius[i])
			pts[i] = point{X: x, Y: y, Z: z}
		}
		mean := stat.Mean(nearestSpacing(pts), nil)
		if mean == 0 {
			return geometry.Spherical{}, fmt.Errorf("all data at the same position: %w", geometry.ErrDegenerateGeometry)
		}
		factor := s.DepthFactor
		if factor <= 0 {
			factor = DefaultDepthFactor
		}
		depth = factor * mean
	}

	sources := coords.Subset(identity(coords.Len()))
	for i := range sources.Radius {
		sources.Radius[i] -= depth
		if sources.Radius[i] <= 0 {
			return geometry.Spherical{}, fmt.Errorf("source %d below the center of the Earth: %w", i, geometry.ErrDegenerateGeometry)
		}
	}
	return sources, nil
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func sphericalGreens(coords, sources geometry.Spherical) forward.EntryFunc {
	return func(i, j int) float64 {
		return kernels.GreensFunctionSpherical(
			coords.Longitude[i], coords.Latitude[i], coords.Radius[i],
			sources.Longitude[j], sources.Latitude[j], sources.Radius[j])
	}
}

// Fit places the sources and solves for their coefficients.
func (s *Spherical) Fit(coords geometry.Spherical, data, weights []float64) (err error) {
	defer timed(s.logger(), "fit spherical sources")(&err)
	if err := coords.Validate(); err != nil {
		return err
	}
	if err := checkData(coords.Len(), data, weights); err != nil {
		return err
	}
	sources, err := s.PlaceSources(coords)
	if err != nil {
		return err
	}

	jac := forward.Matrix(coords.Len(), sources.Len(), sphericalGreens(coords, sources), s.Engine)
	coefs, damping, err := s.solve(jac, data, weights)
	if err != nil {
		return err
	}
	s.store(&fitted[geometry.Spherical]{sources: sources, coefs: coefs, damping: damping})
	s.logger().Info("spherical sources fitted", "data", coords.Len(), "sources", sources.Len(), "damping", damping)
	return nil
}

// Predict evaluates the fitted sources on coords.
func (s *Spherical) Predict(coords geometry.Spherical) ([]float64, error) {
	st, err := s.load()
	if err != nil {
		return nil, err
	}
	if err := coords.Validate(); err != nil {
		return nil, err
	}
	return forward.Sum(coords.Len(), st.coefs, sphericalGreens(coords, st.sources), s.Engine), nil
}

// Jacobian returns the design matrix of the fitted sources on coords.
func (s *Spherical) Jacobian(coords geometry.Spherical) (*mat.Dense, error) {
	st, err := s.load()
	if err != nil {
		return nil, err
	}
	if err := coords.Validate(); err != nil {
		return nil, err
	}
	return forward.Matrix(coords.Len(), st.sources.Len(), sphericalGreens(coords, st.sources), s.Engine), nil
}

// Score is the R² of the prediction on coords against data.
func (s *Spherical) Score(coords geometry.Spherical, data, weights []float64) (float64, error) {
	if err := checkData(coords.Len(), data, weights); err != nil {
		return 0, err
	}
	predicted, err := s.Predict(coords)
	if err != nil {
		return 0, err
	}
	return score(predicted, data, weights), nil
}
