package kernels

import (
	"fmt"
	"math"

	"gravmag/pkg/geometry"
)

// PrismFunc evaluates the field of a single prism with the given density at
// one observation point. Results are in SI units.
type PrismFunc func(easting, northing, upward float64, p geometry.Prism, density float64) float64

// cornerKernel is evaluated on the coordinates of a prism corner shifted to
// the observation point, with r the distance to that corner.
type cornerKernel func(x, y, z, r float64) float64

// PrismGravityFunc returns the kernel for a gravity field of a prism.
func PrismGravityFunc(field Field) (PrismFunc, error) {
	var (
		kern cornerKernel
		sign = 1.0
	)
	switch field {
	case Potential:
		kern = kernelPotential
	case GEasting:
		kern = kernelE
	case GNorthing:
		kern = kernelN
	case GZ:
		kern, sign = kernelU, -1
	case GEE:
		kern = kernelEE
	case GNN:
		kern = kernelNN
	case GZZ:
		kern = kernelUU
	case GEN:
		kern = kernelEN
	case GEZ:
		kern, sign = kernelEU, -1
	case GNZ:
		kern, sign = kernelNU, -1
	default:
		return nil, fmt.Errorf("prism gravity %v: %w", field, ErrUnsupportedField)
	}
	return func(easting, northing, upward float64, p geometry.Prism, density float64) float64 {
		return sign * geometry.GravitationalConstant * density * prismSum(kern, easting, northing, upward, p)
	}, nil
}

// PrismGravity computes one gravity field of a single prism.
func PrismGravity(field Field, easting, northing, upward float64, p geometry.Prism, density float64) (float64, error) {
	fn, err := PrismGravityFunc(field)
	if err != nil {
		return 0, err
	}
	return fn(easting, northing, upward, p, density), nil
}

// prismSum evaluates kern on the eight corners of the prism with alternating
// signs. Index 0 is the upper bound of each axis.
func prismSum(kern cornerKernel, easting, northing, upward float64, p geometry.Prism) float64 {
	xs := [2]float64{p.East - easting, p.West - easting}
	ys := [2]float64{p.North - northing, p.South - northing}
	zs := [2]float64{p.Top - upward, p.Bottom - upward}

	var result float64
	for i, x := range xs {
		for j, y := range ys {
			for k, z := range zs {
				r := math.Sqrt(x*x + y*y + z*z)
				v := kern(x, y, z, r)
				if (i+j+k)%2 == 0 {
					result += v
				} else {
					result -= v
				}
			}
		}
	}
	return result
}

// OnEdge reports whether the point lies on an edge or a vertex of the prism.
// Second derivatives and the magnetic field are singular there; the kernels
// still return a finite value.
func OnEdge(easting, northing, upward float64, p geometry.Prism) bool {
	onE := easting == p.West || easting == p.East
	onN := northing == p.South || northing == p.North
	onU := upward == p.Bottom || upward == p.Top
	inE := easting >= p.West && easting <= p.East
	inN := northing >= p.South && northing <= p.North
	inU := upward >= p.Bottom && upward <= p.Top
	return (onE && onN && inU) || (onE && onU && inN) || (onN && onU && inE)
}

func kernelPotential(x, y, z, r float64) float64 {
	return x*y*safeLog(z, x, y, r) +
		y*z*safeLog(x, y, z, r) +
		z*x*safeLog(y, z, x, r) -
		0.5*x*x*safeAtan2(z*y, x*r) -
		0.5*y*y*safeAtan2(z*x, y*r) -
		0.5*z*z*safeAtan2(x*y, z*r)
}

func kernelE(x, y, z, r float64) float64 {
	return -(y*safeLog(z, x, y, r) + z*safeLog(y, x, z, r) - x*safeAtan2(y*z, x*r))
}

func kernelN(x, y, z, r float64) float64 {
	return -(z*safeLog(x, y, z, r) + x*safeLog(z, x, y, r) - y*safeAtan2(x*z, y*r))
}

func kernelU(x, y, z, r float64) float64 {
	return -(x*safeLog(y, x, z, r) + y*safeLog(x, y, z, r) - z*safeAtan2(x*y, z*r))
}

func kernelEE(x, y, z, r float64) float64 { return -safeAtan2(y*z, x*r) }
func kernelNN(x, y, z, r float64) float64 { return -safeAtan2(x*z, y*r) }
func kernelUU(x, y, z, r float64) float64 { return -safeAtan2(x*y, z*r) }
func kernelEN(x, y, z, r float64) float64 { return safeLog(z, x, y, r) }
func kernelEU(x, y, z, r float64) float64 { return safeLog(y, x, z, r) }
func kernelNU(x, y, z, r float64) float64 { return safeLog(x, y, z, r) }

// safeAtan2 is atan(y/x) with the limits taken when x is zero. Using the
// principal value of atan rather than atan2 keeps the corner sum consistent.
func safeAtan2(y, x float64) float64 {
	if x != 0 {
		return math.Atan(y / x)
	}
	switch {
	case y > 0:
		return math.Pi / 2
	case y < 0:
		return -math.Pi / 2
	}
	return 0
}

// safeLog computes log(x + r) where r = sqrt(x² + y² + z²). For negative x
// the equivalent form log((y² + z²)/(r - x)) avoids cancellation. On the
// negative x axis log(y² + z²) is dropped: the two corners on that line
// share it and it cancels in the corner sum.
func safeLog(x, y, z, r float64) float64 {
	if r == 0 {
		return 0
	}
	if x < 0 {
		if y == 0 && z == 0 {
			return -math.Log(r - x)
		}
		return math.Log((y*y + z*z) / (r - x))
	}
	return math.Log(x + r)
}
