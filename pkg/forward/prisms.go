package forward

import (
	"fmt"
	"sync/atomic"

	"gravmag/pkg/geometry"
	"gravmag/pkg/kernels"
)

// Prisms computes a gravity field of a set of prisms with constant densities
// (kg/m³) on a batch of points. Results are in mGal for accelerations,
// Eötvös for gradients and J/kg for the potential.
func Prisms(coords geometry.Coordinates, prisms []geometry.Prism, density []float64, field kernels.Field, opts Options) ([]float64, error) {
	if !field.IsGravity() {
		return nil, fmt.Errorf("prism gravity %v: %w", field, kernels.ErrUnsupportedField)
	}
	if err := checkPrisms(coords, prisms, len(density), opts); err != nil {
		return nil, err
	}
	kernel, err := kernels.PrismGravityFunc(field)
	if err != nil {
		return nil, err
	}

	keep := livePrisms(prisms, func(i int) bool { return density[i] != 0 })
	opts.logger().Debug("evaluating prisms", "field", field, "points", coords.Len(),
		"prisms", len(keep), "discarded", len(prisms)-len(keep), "axis", opts.Axis)

	var onEdge atomic.Int64
	watchEdges := field.IsTensor()
	out := opts.run(coords.Len(), len(keep), 1, func(i, j int, acc []float64) {
		e, n, u := coords.At(i)
		p := prisms[keep[j]]
		if watchEdges && kernels.OnEdge(e, n, u, p) {
			onEdge.Add(1)
		}
		acc[0] += kernel(e, n, u, p, density[keep[j]])
	})[0]

	if c := onEdge.Load(); c > 0 {
		opts.logger().Warn("observation points on prism edges, gradient values there are limits of a singular field",
			"field", field, "pairs", c)
	}
	scaleGravity(field, out)
	return out, nil
}

// PrismMagnetic computes the three components of the magnetic field (nT) of
// prisms with uniform magnetization (A/m).
func PrismMagnetic(coords geometry.Coordinates, prisms []geometry.Prism, magnetization []geometry.Vector, opts Options) (be, bn, bu []float64, err error) {
	if err := checkPrisms(coords, prisms, len(magnetization), opts); err != nil {
		return nil, nil, nil, err
	}

	keep := livePrisms(prisms, func(i int) bool { return !magnetization[i].IsZero() })
	opts.logger().Debug("evaluating magnetic prisms", "points", coords.Len(),
		"prisms", len(keep), "discarded", len(prisms)-len(keep), "axis", opts.Axis)

	var onEdge atomic.Int64
	out := opts.run(coords.Len(), len(keep), 3, func(i, j int, acc []float64) {
		e, n, u := coords.At(i)
		p := prisms[keep[j]]
		if kernels.OnEdge(e, n, u, p) {
			onEdge.Add(1)
		}
		x, y, z := kernels.PrismMagnetic(e, n, u, p, magnetization[keep[j]])
		acc[0] += x
		acc[1] += y
		acc[2] += z
	})
	warnMagneticEdges(opts, onEdge.Load())

	for _, c := range out {
		scale(c, geometry.Tesla2NanoTesla)
	}
	return out[0], out[1], out[2], nil
}

// PrismMagneticComponent computes a single magnetic component (nT).
func PrismMagneticComponent(coords geometry.Coordinates, prisms []geometry.Prism, magnetization []geometry.Vector, field kernels.Field, opts Options) ([]float64, error) {
	if !field.IsMagnetic() {
		return nil, fmt.Errorf("prism magnetic %v: %w", field, kernels.ErrUnsupportedField)
	}
	if err := checkPrisms(coords, prisms, len(magnetization), opts); err != nil {
		return nil, err
	}

	keep := livePrisms(prisms, func(i int) bool { return !magnetization[i].IsZero() })
	var onEdge atomic.Int64
	out := opts.run(coords.Len(), len(keep), 1, func(i, j int, acc []float64) {
		e, n, u := coords.At(i)
		p := prisms[keep[j]]
		if kernels.OnEdge(e, n, u, p) {
			onEdge.Add(1)
		}
		// The field was checked above, so the error is always nil.
		v, _ := kernels.PrismMagneticComponent(field, e, n, u, p, magnetization[keep[j]])
		acc[0] += v
	})[0]
	warnMagneticEdges(opts, onEdge.Load())

	scale(out, geometry.Tesla2NanoTesla)
	return out, nil
}

func checkPrisms(coords geometry.Coordinates, prisms []geometry.Prism, nProps int, opts Options) error {
	if err := coords.Validate(); err != nil {
		return err
	}
	if nProps != len(prisms) {
		return fmt.Errorf("%d prisms but %d physical properties: %w", len(prisms), nProps, geometry.ErrShape)
	}
	if opts.DisableChecks {
		return nil
	}
	return geometry.ValidatePrisms(prisms)
}

// livePrisms returns the indices of prisms with a non-zero volume whose
// physical property passes keep.
func livePrisms(prisms []geometry.Prism, keep func(int) bool) []int {
	idx := make([]int, 0, len(prisms))
	for i, p := range prisms {
		if !p.IsNull() && keep(i) {
			idx = append(idx, i)
		}
	}
	return idx
}

func warnMagneticEdges(opts Options, pairs int64) {
	if pairs > 0 {
		opts.logger().Warn("observation points on prism edges, magnetic values there are limits of a singular field",
			"pairs", pairs)
	}
}
