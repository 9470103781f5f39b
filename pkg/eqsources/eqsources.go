// Package eqsources fits equivalent sources to gravity and magnetic data and
// uses them to predict the field elsewhere.
//
// Every model follows the same life cycle: it is created unfit, Fit places
// the sources and solves for one coefficient per source, and Predict
// evaluates the fitted sources. Refitting replaces the sources and
// coefficients in a single step, so a concurrent Predict sees either the old
// or the new model, never a mix.
package eqsources

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"gravmag/pkg/forward"
	"gravmag/pkg/geometry"
	"gravmag/pkg/solver"
)

// ErrNotFitted is returned by methods that need a fitted model.
var ErrNotFitted = errors.New("eqsources: model is not fitted, call Fit first")

// Model is the contract shared by the Cartesian equivalent source models.
type Model interface {
	Fit(coords geometry.Coordinates, data, weights []float64) error
	Predict(coords geometry.Coordinates) ([]float64, error)
	Jacobian(coords geometry.Coordinates) (*mat.Dense, error)
	Score(coords geometry.Coordinates, data, weights []float64) (float64, error)
	Fitted() bool
}

var (
	_ Model = (*Points)(nil)
	_ Model = (*Layer)(nil)
	_ Model = (*Prisms)(nil)
)

// Fitting holds the solver and dispatch settings common to every model.
type Fitting struct {
	// Damping is the ridge parameter, applied after scaling every column of
	// the design matrix to unit standard deviation. It is ignored when
	// CrossValidate is set.
	Damping float64
	// CrossValidate picks the damping among Candidates by k-fold
	// cross-validation with Folds folds.
	CrossValidate bool
	Candidates    []float64
	Folds         int
	// Engine controls the parallel construction of design matrices and
	// predictions.
	Engine forward.Options
}

// DefaultFitting uses solver.DefaultDamping on all CPUs.
func DefaultFitting() Fitting {
	return Fitting{Damping: solver.DefaultDamping}
}

func (f Fitting) logger() *slog.Logger {
	if f.Engine.Logger != nil {
		return f.Engine.Logger
	}
	return slog.Default()
}

// solve scales every column of jac to unit standard deviation, solves the
// damped problem on the scaled matrix and returns the coefficients of the
// unscaled one. The damping thus does not depend on the magnitude of the
// Green's functions. jac is modified.
func (f Fitting) solve(jac *mat.Dense, data, weights []float64) (coefs []float64, damping float64, err error) {
	scales := scaleColumns(jac)
	s := solver.Solver{Logger: f.Engine.Logger, Workers: f.Engine.Workers}
	damping = f.Damping
	if f.CrossValidate {
		res, err := s.CrossValidate(jac, data, weights, f.Candidates, f.Folds)
		if err != nil {
			return nil, 0, fmt.Errorf("selecting damping: %w", err)
		}
		damping = res.Best
		f.logger().Info("damping selected by cross-validation", "damping", damping, "candidates", len(res.Candidates))
	}
	coefs, err = s.Ridge(jac, data, weights, damping)
	if err != nil {
		return nil, 0, err
	}
	for i := range coefs {
		coefs[i] /= scales[i]
	}
	return coefs, damping, nil
}

// scaleColumns divides each column of jac by its population standard
// deviation and returns the divisors. Constant columns are left as they are.
func scaleColumns(jac *mat.Dense) []float64 {
	rows, cols := jac.Dims()
	scales := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, jac)
		sd := math.Sqrt(stat.PopVariance(col, nil))
		if sd == 0 || math.IsNaN(sd) || math.IsInf(sd, 0) {
			sd = 1
		}
		scales[j] = sd
		for i, v := range col {
			jac.Set(i, j, v/sd)
		}
	}
	return scales
}

// fitted is the immutable state of a fitted model. S is the source layout.
type fitted[S any] struct {
	sources S
	coefs   []float64
	damping float64
}

// fitState holds the fitted state of a model and swaps it atomically.
type fitState[S any] struct {
	ptr atomic.Pointer[fitted[S]]
}

func (f *fitState[S]) load() (*fitted[S], error) {
	s := f.ptr.Load()
	if s == nil {
		return nil, ErrNotFitted
	}
	return s, nil
}

func (f *fitState[S]) store(s *fitted[S]) { f.ptr.Store(s) }

// Fitted reports whether Fit has succeeded at least once.
func (f *fitState[S]) Fitted() bool { return f.ptr.Load() != nil }

// Coefficients returns a copy of the fitted coefficients.
func (f *fitState[S]) Coefficients() ([]float64, error) {
	s, err := f.load()
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), s.coefs...), nil
}

// FittedDamping returns the damping used by the last fit.
func (f *fitState[S]) FittedDamping() (float64, error) {
	s, err := f.load()
	if err != nil {
		return 0, err
	}
	return s.damping, nil
}

func checkData(n int, data, weights []float64) error {
	if len(data) != n {
		return fmt.Errorf("%d points but %d data: %w", n, len(data), geometry.ErrShape)
	}
	if weights != nil && len(weights) != n {
		return fmt.Errorf("%d points but %d weights: %w", n, len(weights), geometry.ErrShape)
	}
	for i, d := range data {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return fmt.Errorf("datum %d is %g", i, d)
		}
	}
	return nil
}

func score(predicted, data, weights []float64) float64 {
	return solver.R2(data, predicted, weights)
}

// timed returns a function that logs the duration of op at debug level,
// along with the error it ended with, if any.
func timed(logger *slog.Logger, op string) func(errp *error) {
	start := time.Now()
	return func(errp *error) {
		elapsed := time.Since(start)
		if errp != nil && *errp != nil {
			logger.Debug(op, "elapsed", elapsed, "err", *errp)
			return
		}
		logger.Debug(op, "elapsed", elapsed)
	}
}
