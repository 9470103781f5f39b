package kernels

import (
	"fmt"
	"math"

	"gravmag/pkg/geometry"
)

// magneticFactor is μ0/4π.
const magneticFactor = geometry.VacuumPermeability / (4 * math.Pi)

// PrismMagnetic computes the three components of the magnetic induction (T)
// of a prism with uniform magnetization m (A/m).
func PrismMagnetic(easting, northing, upward float64, p geometry.Prism, m geometry.Vector) (be, bn, bu float64) {
	xs := [2]float64{p.East - easting, p.West - easting}
	ys := [2]float64{p.North - northing, p.South - northing}
	zs := [2]float64{p.Top - upward, p.Bottom - upward}

	for i, x := range xs {
		for j, y := range ys {
			for k, z := range zs {
				r := math.Sqrt(x*x + y*y + z*z)
				kee := kernelEE(x, y, z, r)
				knn := kernelNN(x, y, z, r)
				kuu := kernelUU(x, y, z, r)
				ken := kernelEN(x, y, z, r)
				keu := kernelEU(x, y, z, r)
				knu := kernelNU(x, y, z, r)

				e := m.East*kee + m.North*ken + m.Up*keu
				n := m.East*ken + m.North*knn + m.Up*knu
				u := m.East*keu + m.North*knu + m.Up*kuu
				if (i+j+k)%2 == 0 {
					be, bn, bu = be+e, bn+n, bu+u
				} else {
					be, bn, bu = be-e, bn-n, bu-u
				}
			}
		}
	}
	return magneticFactor * be, magneticFactor * bn, magneticFactor * bu
}

// PrismMagneticComponent computes a single component of the magnetic
// induction of a prism. Only the diagonal and mixed kernels needed for that
// component are evaluated.
func PrismMagneticComponent(field Field, easting, northing, upward float64, p geometry.Prism, m geometry.Vector) (float64, error) {
	var k1, k2, k3 cornerKernel
	switch field {
	case BEasting:
		k1, k2, k3 = kernelEE, kernelEN, kernelEU
	case BNorthing:
		k1, k2, k3 = kernelEN, kernelNN, kernelNU
	case BUpward:
		k1, k2, k3 = kernelEU, kernelNU, kernelUU
	default:
		return 0, fmt.Errorf("prism magnetic %v: %w", field, ErrUnsupportedField)
	}
	kern := func(x, y, z, r float64) float64 {
		return m.East*k1(x, y, z, r) + m.North*k2(x, y, z, r) + m.Up*k3(x, y, z, r)
	}
	return magneticFactor * prismSum(kern, easting, northing, upward, p), nil
}
