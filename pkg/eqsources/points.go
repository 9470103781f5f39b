package eqsources

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"gravmag/pkg/forward"
	"gravmag/pkg/geometry"
	"gravmag/pkg/kernels"
)

// Points are equivalent point sources in Cartesian coordinates whose unit
// response is the Green's function 1/d. By default one source is placed
// under each datum; see DepthType for the depth rules.
//
// A Points must not be copied once fitted.
type Points struct {
	DepthType   DepthType
	Depth       float64 // DepthOffset and DepthConstant
	DepthFactor float64 // DepthDefault and DepthRelative
	MinDepth    float64 // DepthRelative floor

	// BlockSize, when positive, replaces the data positions by their block
	// medians before placing sources.
	BlockSize float64

	// Sources, when set, are used as-is instead of being derived from the
	// data.
	Sources *geometry.Coordinates

	Fitting
	fitState[geometry.Coordinates]
}

// NewPoints returns an unfit model with default placement and damping.
func NewPoints() *Points {
	return &Points{
		DepthType:   DepthDefault,
		DepthFactor: DefaultDepthFactor,
		MinDepth:    DefaultMinDepth,
		Fitting:     DefaultFitting(),
	}
}

// PlaceSources returns the source positions Fit would use for coords.
func (p *Points) PlaceSources(coords geometry.Coordinates) (geometry.Coordinates, error) {
	if err := coords.Validate(); err != nil {
		return geometry.Coordinates{}, err
	}
	if p.Sources != nil {
		if err := p.Sources.Validate(); err != nil {
			return geometry.Coordinates{}, fmt.Errorf("sources: %w", err)
		}
		if p.Sources.Len() == 0 {
			return geometry.Coordinates{}, fmt.Errorf("empty source set: %w", geometry.ErrDegenerateGeometry)
		}
		return p.Sources.Clone(), nil
	}
	if err := checkExtent(coords); err != nil {
		return geometry.Coordinates{}, err
	}

	sources := coords.Clone()
	if p.BlockSize > 0 {
		sources = blockMedian(coords, p.BlockSize)
	}
	factor := p.DepthFactor
	if factor <= 0 {
		factor = DefaultDepthFactor
	}

	switch p.DepthType {
	case DepthDefault:
		spacing, err := meanSpacing(coords)
		if err != nil {
			return geometry.Coordinates{}, err
		}
		depth := math.Max(factor*spacing, p.minDepth())
		for i := range sources.Upward {
			sources.Upward[i] -= depth
		}
	case DepthRelative:
		if sources.Len() < 2 {
			return geometry.Coordinates{}, fmt.Errorf("relative depth needs at least 2 sources: %w", geometry.ErrDegenerateGeometry)
		}
		spacing := nearestSpacing(horizontalPoints(sources))
		for i := range sources.Upward {
			sources.Upward[i] -= math.Max(factor*spacing[i], p.minDepth())
		}
	case DepthOffset:
		if !(p.Depth > 0) {
			return geometry.Coordinates{}, fmt.Errorf("offset depth must be positive, got %g: %w", p.Depth, geometry.ErrDegenerateGeometry)
		}
		for i := range sources.Upward {
			sources.Upward[i] -= p.Depth
		}
	case DepthConstant:
		if lowest := floats.Min(coords.Upward); -p.Depth >= lowest {
			return geometry.Coordinates{}, fmt.Errorf("constant source height %g is not below the lowest datum at %g: %w",
				-p.Depth, lowest, geometry.ErrDegenerateGeometry)
		}
		for i := range sources.Upward {
			sources.Upward[i] = -p.Depth
		}
	default:
		return geometry.Coordinates{}, fmt.Errorf("unknown depth type %v", p.DepthType)
	}
	return sources, nil
}

func (p *Points) minDepth() float64 {
	if p.MinDepth > 0 {
		return p.MinDepth
	}
	return DefaultMinDepth
}

// Fit places the sources and solves for their coefficients. weights may be
// nil.
func (p *Points) Fit(coords geometry.Coordinates, data, weights []float64) (err error) {
	defer timed(p.logger(), "fit point sources")(&err)
	if err := coords.Validate(); err != nil {
		return err
	}
	if err := checkData(coords.Len(), data, weights); err != nil {
		return err
	}
	sources, err := p.PlaceSources(coords)
	if err != nil {
		return err
	}

	jac := forward.Matrix(coords.Len(), sources.Len(), greens(coords, sources), p.Engine)
	coefs, damping, err := p.solve(jac, data, weights)
	if err != nil {
		return err
	}
	p.store(&fitted[geometry.Coordinates]{sources: sources, coefs: coefs, damping: damping})
	p.logger().Info("point sources fitted", "data", coords.Len(), "sources", sources.Len(), "damping", damping)
	return nil
}

// Predict evaluates the fitted sources on coords, in the units of the data.
func (p *Points) Predict(coords geometry.Coordinates) ([]float64, error) {
	s, err := p.load()
	if err != nil {
		return nil, err
	}
	if err := coords.Validate(); err != nil {
		return nil, err
	}
	return forward.Sum(coords.Len(), s.coefs, greens(coords, s.sources), p.Engine), nil
}

// Jacobian returns the design matrix of the fitted sources on coords.
func (p *Points) Jacobian(coords geometry.Coordinates) (*mat.Dense, error) {
	s, err := p.load()
	if err != nil {
		return nil, err
	}
	if err := coords.Validate(); err != nil {
		return nil, err
	}
	return forward.Matrix(coords.Len(), s.sources.Len(), greens(coords, s.sources), p.Engine), nil
}

// Score is the R² of the prediction on coords against data.
func (p *Points) Score(coords geometry.Coordinates, data, weights []float64) (float64, error) {
	if err := checkData(coords.Len(), data, weights); err != nil {
		return 0, err
	}
	predicted, err := p.Predict(coords)
	if err != nil {
		return 0, err
	}
	return score(predicted, data, weights), nil
}

// SourceCoordinates returns a copy of the fitted source positions.
func (p *Points) SourceCoordinates() (geometry.Coordinates, error) {
	s, err := p.load()
	if err != nil {
		return geometry.Coordinates{}, err
	}
	return s.sources.Clone(), nil
}

func greens(coords, sources geometry.Coordinates) forward.EntryFunc {
	return func(i, j int) float64 {
		e, n, u := coords.At(i)
		se, sn, su := sources.At(j)
		return kernels.GreensFunction(e, n, u, se, sn, su)
	}
}
