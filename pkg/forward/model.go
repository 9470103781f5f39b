package forward

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"gravmag/pkg/geometry"
	"gravmag/pkg/kernels"
)

// Model is a Cartesian gravity model made of prisms and point masses.
// Either family may be empty.
type Model struct {
	Prisms    []geometry.Prism
	Densities []float64
	Points    geometry.Coordinates
	Masses    []float64
}

// Sources returns the number of sources in the model.
func (m Model) Sources() int { return len(m.Prisms) + m.Points.Len() }

// Evaluate computes a gravity field of the whole model. Prisms are summed
// first, then point masses.
func (m Model) Evaluate(coords geometry.Coordinates, field kernels.Field, opts Options) ([]float64, error) {
	out := make([]float64, coords.Len())
	if err := coords.Validate(); err != nil {
		return nil, err
	}
	if len(m.Prisms) > 0 || len(m.Densities) > 0 {
		v, err := Prisms(coords, m.Prisms, m.Densities, field, opts)
		if err != nil {
			return nil, fmt.Errorf("prisms: %w", err)
		}
		floats.Add(out, v)
	}
	if m.Points.Len() > 0 || len(m.Masses) > 0 {
		v, err := PointMasses(coords, m.Points, m.Masses, field, opts)
		if err != nil {
			return nil, fmt.Errorf("point masses: %w", err)
		}
		floats.Add(out, v)
	}
	return out, nil
}

// SphericalModel is a gravity model of tesseroids and point masses in
// geocentric spherical coordinates. Either family may be empty.
type SphericalModel struct {
	Tesseroids []geometry.Tesseroid
	Densities  []float64
	Points     geometry.Spherical
	Masses     []float64
}

// Sources returns the number of sources in the model.
func (m SphericalModel) Sources() int { return len(m.Tesseroids) + m.Points.Len() }

// Evaluate computes a gravity field of the whole model. Tesseroids only
// provide the potential and g_z. The quadrature settings come from
// opts.Tesseroid and the convergence warnings of the tesseroids are returned
// with the values.
func (m SphericalModel) Evaluate(coords geometry.Spherical, field kernels.Field, opts Options) ([]float64, []kernels.ConvergenceWarning, error) {
	if err := coords.Validate(); err != nil {
		return nil, nil, err
	}
	out := make([]float64, coords.Len())
	var warnings []kernels.ConvergenceWarning
	if len(m.Tesseroids) > 0 || len(m.Densities) > 0 {
		v, w, err := Tesseroids(coords, m.Tesseroids, m.Densities, field, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("tesseroids: %w", err)
		}
		floats.Add(out, v)
		warnings = w
	}
	if m.Points.Len() > 0 || len(m.Masses) > 0 {
		v, err := PointMassesSpherical(coords, m.Points, m.Masses, field, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("point masses: %w", err)
		}
		floats.Add(out, v)
	}
	return out, warnings, nil
}
