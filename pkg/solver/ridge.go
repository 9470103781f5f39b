// Package solver estimates linear coefficients by damped (ridge) least
// squares and picks the damping by cross-validation.
package solver

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"gravmag/pkg/geometry"
)

// DefaultDamping is the ridge parameter used when none is configured. It is
// small enough to leave well-posed fits untouched while keeping the normal
// equations invertible when sources outnumber data.
const DefaultDamping = 1e-10

// ConditionTolerance is the largest condition number of the normal equations
// accepted from the Cholesky factorization. Above it the augmented system is
// solved by QR, whose condition number is the square root.
var ConditionTolerance = 1e12

var (
	// ErrSingular is returned when the damped system cannot be solved.
	ErrSingular = errors.New("solver: system is singular even after damping, increase the damping parameter")

	// ErrInvalidWeights is returned for negative or non-finite weights.
	ErrInvalidWeights = errors.New("solver: weights must be finite and non-negative")
)

// Solver holds the ambient settings of the solvers. The zero value is ready
// to use.
type Solver struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Workers bounds the concurrency of CrossValidate. 0 uses all CPUs.
	Workers int
}

func (s Solver) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Ridge is Solver{}.Ridge.
func Ridge(jac mat.Matrix, data, weights []float64, damping float64) ([]float64, error) {
	return Solver{}.Ridge(jac, data, weights, damping)
}

// Ridge minimizes ‖W^½(J·c − d)‖² + damping·‖c‖² over c. weights may be nil
// for unit weights.
//
// The normal equations (JᵀWJ + damping·I)c = JᵀWd are solved by Cholesky.
// When the factorization fails or is too ill-conditioned, the equivalent
// least-squares problem [W^½J; √damping·I]c = [W^½d; 0] is solved by QR.
//
// damping is absolute and is compared with the entries of JᵀWJ as given.
// Callers that want a damping independent of the scale of J normalize its
// columns first.
func (s Solver) Ridge(jac mat.Matrix, data, weights []float64, damping float64) ([]float64, error) {
	rows, cols := jac.Dims()
	if err := checkProblem(rows, data, weights); err != nil {
		return nil, err
	}
	if damping < 0 || math.IsNaN(damping) || math.IsInf(damping, 0) {
		return nil, fmt.Errorf("invalid damping %g", damping)
	}
	if cols == 0 {
		return nil, fmt.Errorf("no unknowns: %w", geometry.ErrShape)
	}
	if rows < cols {
		s.logger().Warn("under-determined least-squares system, the solution relies on damping",
			"data", rows, "unknowns", cols, "damping", damping)
	}

	jw, dw := weighted(jac, data, weights)

	var normal mat.SymDense
	normal.SymOuterK(1, jw.T())
	for i := 0; i < cols; i++ {
		normal.SetSym(i, i, normal.At(i, i)+damping)
	}
	var rhs mat.VecDense
	rhs.MulVec(jw.T(), dw)

	var chol mat.Cholesky
	if chol.Factorize(&normal) && chol.Cond() <= ConditionTolerance {
		var c mat.VecDense
		if err := chol.SolveVecTo(&c, &rhs); err == nil {
			return c.RawVector().Data, nil
		}
	}
	s.logger().Debug("normal equations ill-conditioned, falling back to QR", "unknowns", cols, "damping", damping)

	return solveAugmented(jw, dw, damping)
}

func solveAugmented(jw *mat.Dense, dw *mat.VecDense, damping float64) ([]float64, error) {
	rows, cols := jw.Dims()
	aug := mat.NewDense(rows+cols, cols, nil)
	aug.Slice(0, rows, 0, cols).(*mat.Dense).Copy(jw)
	sqrtDamping := math.Sqrt(damping)
	for i := 0; i < cols; i++ {
		aug.Set(rows+i, i, sqrtDamping)
	}
	b := mat.NewVecDense(rows+cols, nil)
	b.SliceVec(0, rows).(*mat.VecDense).CopyVec(dw)

	var qr mat.QR
	qr.Factorize(aug)
	var c mat.VecDense
	if err := qr.SolveVecTo(&c, false, b); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrSingular)
	}
	return c.RawVector().Data, nil
}

// weighted returns W^½J and W^½d as new values.
func weighted(jac mat.Matrix, data, weights []float64) (*mat.Dense, *mat.VecDense) {
	jw := mat.DenseCopyOf(jac)
	dw := mat.NewVecDense(len(data), append([]float64(nil), data...))
	if weights == nil {
		return jw, dw
	}
	for i, w := range weights {
		sw := math.Sqrt(w)
		row := jw.RawRowView(i)
		for j := range row {
			row[j] *= sw
		}
		dw.SetVec(i, dw.AtVec(i)*sw)
	}
	return jw, dw
}

func checkProblem(rows int, data, weights []float64) error {
	if len(data) != rows {
		return fmt.Errorf("jacobian has %d rows but there are %d data: %w", rows, len(data), geometry.ErrShape)
	}
	if weights == nil {
		return nil
	}
	if len(weights) != rows {
		return fmt.Errorf("%d weights for %d data: %w", len(weights), rows, geometry.ErrShape)
	}
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("weight %d is %g: %w", i, w, ErrInvalidWeights)
		}
	}
	return nil
}

// Predict returns J·c.
func Predict(jac mat.Matrix, coefs []float64) []float64 {
	rows, cols := jac.Dims()
	if rows == 0 || cols == 0 {
		return make([]float64, rows)
	}
	out := mat.NewVecDense(rows, nil)
	out.MulVec(jac, mat.NewVecDense(len(coefs), coefs))
	return out.RawVector().Data
}
