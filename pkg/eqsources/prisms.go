package eqsources

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"gravmag/pkg/forward"
	"gravmag/pkg/geometry"
	"gravmag/pkg/kernels"
)

// Prisms are block equivalent sources: one vertical prism under each datum,
// BlockSize wide and Thickness tall, its top Depth below the datum. The unit
// response is the prism's Field for a density of 1/G, so coefficients carry
// the units of the data divided by those of the kernel.
type Prisms struct {
	// Field is the kernel used for each block, kernels.GZ or kernels.Potential.
	Field kernels.Field
	// BlockSize is the horizontal size of each prism. 0 uses the mean data
	// spacing.
	BlockSize float64
	// Thickness of each prism. 0 uses BlockSize.
	Thickness float64
	// Depth of the prism tops below their datum. 0 uses DepthFactor times the
	// mean data spacing.
	Depth       float64
	DepthFactor float64

	Fitting
	fitState[[]geometry.Prism]
}

// NewPrisms returns an unfit block model fitting g_z data.
func NewPrisms() *Prisms {
	return &Prisms{Field: kernels.GZ, DepthFactor: DefaultDepthFactor, Fitting: DefaultFitting()}
}

func (p *Prisms) kernel() (kernels.PrismFunc, error) {
	if p.Field != kernels.GZ && p.Field != kernels.Potential {
		return nil, fmt.Errorf("prism equivalent sources support potential and g_z, not %v: %w", p.Field, kernels.ErrUnsupportedField)
	}
	return kernels.PrismGravityFunc(p.Field)
}

// PlaceSources returns the prisms Fit would use for coords.
func (p *Prisms) PlaceSources(coords geometry.Coordinates) ([]geometry.Prism, error) {
	if err := coords.Validate(); err != nil {
		return nil, err
	}
	if coords.Len() == 0 {
		return nil, fmt.Errorf("no data to place sources under: %w", geometry.ErrDegenerateGeometry)
	}
	size, depth, thickness := p.BlockSize, p.Depth, p.Thickness
	if size <= 0 || depth <= 0 {
		mean, err := meanSpacing(coords)
		if err != nil {
			return nil, err
		}
		if size <= 0 {
			size = mean
		}
		if depth <= 0 {
			factor := p.DepthFactor
			if factor <= 0 {
				factor = DefaultDepthFactor
			}
			depth = factor * mean
		}
	}
	if thickness <= 0 {
		thickness = size
	}

	half := size / 2
	prisms := make([]geometry.Prism, coords.Len())
	for i := range prisms {
		e, n, u := coords.At(i)
		top := u - depth
		prisms[i] = geometry.Prism{
			West: e - half, East: e + half,
			South: n - half, North: n + half,
			Bottom: top - thickness, Top: top,
		}
	}
	return prisms, nil
}

func (p *Prisms) entry(kernel kernels.PrismFunc, coords geometry.Coordinates, prisms []geometry.Prism) forward.EntryFunc {
	return func(i, j int) float64 {
		e, n, u := coords.At(i)
		return kernel(e, n, u, prisms[j], 1/geometry.GravitationalConstant)
	}
}

// Fit places the prisms and solves for their coefficients.
func (p *Prisms) Fit(coords geometry.Coordinates, data, weights []float64) (err error) {
	defer timed(p.logger(), "fit prism sources")(&err)
	kernel, err := p.kernel()
	if err != nil {
		return err
	}
	if err := coords.Validate(); err != nil {
		return err
	}
	if err := checkData(coords.Len(), data, weights); err != nil {
		return err
	}
	prisms, err := p.PlaceSources(coords)
	if err != nil {
		return err
	}

	jac := forward.Matrix(coords.Len(), len(prisms), p.entry(kernel, coords, prisms), p.Engine)
	coefs, damping, err := p.solve(jac, data, weights)
	if err != nil {
		return err
	}
	p.store(&fitted[[]geometry.Prism]{sources: prisms, coefs: coefs, damping: damping})
	p.logger().Info("prism sources fitted", "data", coords.Len(), "sources", len(prisms), "field", p.Field, "damping", damping)
	return nil
}

// Predict evaluates the fitted prisms on coords.
func (p *Prisms) Predict(coords geometry.Coordinates) ([]float64, error) {
	s, err := p.load()
	if err != nil {
		return nil, err
	}
	kernel, err := p.kernel()
	if err != nil {
		return nil, err
	}
	if err := coords.Validate(); err != nil {
		return nil, err
	}
	return forward.Sum(coords.Len(), s.coefs, p.entry(kernel, coords, s.sources), p.Engine), nil
}

// Jacobian returns the design matrix of the fitted prisms on coords.
func (p *Prisms) Jacobian(coords geometry.Coordinates) (*mat.Dense, error) {
	s, err := p.load()
	if err != nil {
		return nil, err
	}
	kernel, err := p.kernel()
	if err != nil {
		return nil, err
	}
	if err := coords.Validate(); err != nil {
		return nil, err
	}
	return forward.Matrix(coords.Len(), len(s.sources), p.entry(kernel, coords, s.sources), p.Engine), nil
}

// Score is the R² of the prediction on coords against data.
func (p *Prisms) Score(coords geometry.Coordinates, data, weights []float64) (float64, error) {
	if err := checkData(coords.Len(), data, weights); err != nil {
		return 0, err
	}
	predicted, err := p.Predict(coords)
	if err != nil {
		return 0, err
	}
	return score(predicted, data, weights), nil
}

// Blocks returns a copy of the fitted prisms.
func (p *Prisms) Blocks() ([]geometry.Prism, error) {
	s, err := p.load()
	if err != nil {
		return nil, err
	}
	return append([]geometry.Prism(nil), s.sources...), nil
}
