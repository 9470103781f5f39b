package forward

import (
	"gonum.org/v1/gonum/floats"

	"gravmag/pkg/geometry"
	"gravmag/pkg/kernels"
)

// GravityScale returns the factor converting a gravity field from SI to the
// units returned by this package.
func GravityScale(field kernels.Field) float64 {
	switch {
	case field == kernels.Potential:
		return 1
	case field.IsTensor():
		return geometry.SI2Eotvos
	}
	return geometry.SI2MGal
}

func scaleGravity(field kernels.Field, values []float64) {
	scale(values, GravityScale(field))
}

func scale(values []float64, factor float64) {
	if factor != 1 {
		floats.Scale(factor, values)
	}
}
