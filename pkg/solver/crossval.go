package solver

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultCandidates are the damping values tried by cross-validation when
// none are configured: one per decade from 1e-12 to 1e-2.
var DefaultCandidates = []float64{1e-12, 1e-11, 1e-10, 1e-9, 1e-8, 1e-7, 1e-6, 1e-5, 1e-4, 1e-3, 1e-2}

// DefaultFolds is the number of folds used when none is configured.
const DefaultFolds = 5

// foldSeed makes the fold assignment reproducible.
const foldSeed = 0x9e3779b97f4a7c15

// tieTolerance is the relative score difference under which two candidates
// are considered equally good.
const tieTolerance = 1e-12

// discardLogger silences the per-fold solves.
var discardLogger = slog.New(slog.DiscardHandler)

// CVResult holds the outcome of a damping search.
type CVResult struct {
	Best       float64
	Candidates []float64
	// Scores is the weighted mean squared error on held-out data for each
	// candidate. Candidates that could not be solved score +Inf.
	Scores []float64
}

// CrossValidate is Solver{}.CrossValidate.
func CrossValidate(jac mat.Matrix, data, weights, candidates []float64, folds int) (CVResult, error) {
	return Solver{}.CrossValidate(jac, data, weights, candidates, folds)
}

// CrossValidate picks the damping among candidates that minimizes the
// held-out mean squared error of k-fold cross-validation. Folds are
// contiguous blocks of a fixed pseudo-random permutation of the data, so the
// result only depends on the inputs. When two candidates tie, the larger
// damping wins. Candidates are evaluated concurrently.
func (s Solver) CrossValidate(jac mat.Matrix, data, weights, candidates []float64, folds int) (CVResult, error) {
	rows, _ := jac.Dims()
	if err := checkProblem(rows, data, weights); err != nil {
		return CVResult{}, err
	}
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	if folds <= 0 {
		folds = DefaultFolds
	}
	if folds > rows {
		folds = rows
	}
	if folds < 2 {
		return CVResult{}, fmt.Errorf("cross-validation needs at least 2 data, got %d", rows)
	}

	splits := kFold(rows, folds)
	result := CVResult{
		Candidates: append([]float64(nil), candidates...),
		Scores:     make([]float64, len(candidates)),
	}

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var group errgroup.Group
	group.SetLimit(workers)
	for c, damping := range candidates {
		group.Go(func() error {
			score, err := s.heldOutError(jac, data, weights, damping, splits)
			if err != nil {
				s.logger().Warn("cross-validation candidate failed", "damping", damping, "err", err)
				score = math.Inf(1)
			}
			result.Scores[c] = score
			return nil
		})
	}
	_ = group.Wait()

	best := -1
	for c, score := range result.Scores {
		if math.IsInf(score, 1) || math.IsNaN(score) {
			continue
		}
		if best < 0 {
			best = c
			continue
		}
		bestScore := result.Scores[best]
		switch {
		case math.Abs(score-bestScore) <= tieTolerance*math.Abs(bestScore):
			if candidates[c] > candidates[best] {
				best = c
			}
		case score < bestScore:
			best = c
		}
	}
	if best < 0 {
		return result, fmt.Errorf("no damping candidate could be solved: %w", ErrSingular)
	}
	result.Best = candidates[best]
	s.logger().Debug("cross-validation finished", "best", result.Best, "score", result.Scores[best], "folds", folds)
	return result, nil
}

type split struct {
	train, test []int
}

// kFold permutes [0, n) with a fixed seed and cuts it into k contiguous
// test blocks.
func kFold(n, k int) []split {
	rng := rand.New(rand.NewPCG(foldSeed, uint64(n)))
	perm := rng.Perm(n)

	splits := make([]split, k)
	for f := 0; f < k; f++ {
		start := f * n / k
		end := (f + 1) * n / k
		test := append([]int(nil), perm[start:end]...)
		train := make([]int, 0, n-len(test))
		train = append(train, perm[:start]...)
		train = append(train, perm[end:]...)
		splits[f] = split{train: train, test: test}
	}
	return splits
}

func (s Solver) heldOutError(jac mat.Matrix, data, weights []float64, damping float64, splits []split) (float64, error) {
	var sum, norm float64
	quiet := Solver{Logger: discardLogger}
	for _, sp := range splits {
		jTrain := subsetRows(jac, sp.train)
		coefs, err := quiet.Ridge(jTrain, pick(data, sp.train), pick(weights, sp.train), damping)
		if err != nil {
			return 0, err
		}
		predicted := Predict(subsetRows(jac, sp.test), coefs)
		for k, i := range sp.test {
			w := 1.0
			if weights != nil {
				w = weights[i]
			}
			r := data[i] - predicted[k]
			sum += w * r * r
			norm += w
		}
	}
	if norm == 0 {
		return math.Inf(1), nil
	}
	return sum / norm, nil
}

func subsetRows(jac mat.Matrix, idx []int) *mat.Dense {
	_, cols := jac.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	for k, i := range idx {
		mat.Row(out.RawRowView(k), i, jac)
	}
	return out
}

func pick(values []float64, idx []int) []float64 {
	if values == nil {
		return nil
	}
	out := make([]float64, len(idx))
	for k, i := range idx {
		out[k] = values[i]
	}
	return out
}

// R2 is the weighted coefficient of determination of predicted against
// observed. weights may be nil.
func R2(observed, predicted, weights []float64) float64 {
	return stat.RSquaredFrom(predicted, observed, weights)
}

// RMSE is the weighted root mean squared error. weights may be nil.
func RMSE(observed, predicted, weights []float64) float64 {
	var sum, norm float64
	for i := range observed {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		r := observed[i] - predicted[i]
		sum += w * r * r
		norm += w
	}
	if norm == 0 {
		return 0
	}
	return math.Sqrt(sum / norm)
}
