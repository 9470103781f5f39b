package forward

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// EntryFunc returns the contribution of unit-coefficient source j at point i.
type EntryFunc func(point, source int) float64

// Sum returns Σ_j coefs[j]·entry(i, j) for every point, dispatched like the
// other batch evaluations. Sources with a zero coefficient are skipped.
func Sum(nPoints int, coefs []float64, entry EntryFunc, opts Options) []float64 {
	return opts.run(nPoints, len(coefs), 1, func(i, j int, acc []float64) {
		if coefs[j] != 0 {
			acc[0] += coefs[j] * entry(i, j)
		}
	})[0]
}

// Matrix fills the nPoints × nSources design matrix with entry(i, j). Rows
// are split among workers, each writing its own rows. The progress hook, if
// any, receives the number of rows done.
func Matrix(nPoints, nSources int, entry EntryFunc, opts Options) *mat.Dense {
	if nPoints == 0 || nSources == 0 {
		return &mat.Dense{}
	}
	jac := mat.NewDense(nPoints, nSources, nil)
	workers := opts.workers()
	var done atomic.Int64

	var group errgroup.Group
	group.SetLimit(workers)
	for _, c := range splitRange(nPoints, workers*chunksPerWorker) {
		group.Go(func() error {
			for i := c.start; i < c.end; i++ {
				row := jac.RawRowView(i)
				for j := range row {
					row[j] = entry(i, j)
				}
			}
			opts.report(int(done.Add(int64(c.end-c.start))), nPoints)
			return nil
		})
	}
	_ = group.Wait()
	return jac
}
