// Package forward sums the kernels of many sources over a batch of
// observation points, optionally in parallel.
package forward

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"gravmag/pkg/kernels"
)

// Axis selects the dimension split among workers.
type Axis int

const (
	// AxisPoints gives each worker a contiguous block of observation points.
	AxisPoints Axis = iota
	// AxisSources gives each worker a block of sources and a private output
	// buffer; buffers are summed in worker order once all are done.
	AxisSources
)

func (a Axis) String() string {
	switch a {
	case AxisPoints:
		return "points"
	case AxisSources:
		return "sources"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// ParseAxis parses "points" or "sources".
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "", "points":
		return AxisPoints, nil
	case "sources":
		return AxisSources, nil
	}
	return 0, fmt.Errorf("unknown parallel axis %q", s)
}

// ProgressFunc is called after each chunk of work with the number of items
// (points or sources, depending on the axis) completed so far. It may be
// called concurrently from several workers.
type ProgressFunc func(done, total int)

// Options controls how a batch is evaluated. The zero value evaluates on all
// CPUs along the points axis with validation enabled.
type Options struct {
	// Workers is the number of goroutines. 0 uses runtime.NumCPU().
	Workers int
	Axis    Axis
	// Progress is optional. A panic inside it is logged and ignored.
	Progress ProgressFunc
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// DisableChecks skips geometry validation. Shape checks always run.
	DisableChecks bool
	// Tesseroid configures the tesseroid quadrature.
	Tesseroid kernels.TesseroidOptions
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// accumulator adds the contribution of one source to one point into out,
// which has one slot per output component.
type accumulator func(point, source int, out []float64)

// chunksPerWorker keeps progress updates reasonably frequent on the points
// axis without making chunks too small.
const chunksPerWorker = 4

// run evaluates acc for every (point, source) pair and returns dim arrays of
// nPoints values. Summation over sources is always in source order within a
// worker, so repeated calls with the same options are bit-identical.
func (o Options) run(nPoints, nSources, dim int, acc accumulator) [][]float64 {
	out := make([][]float64, dim)
	for d := range out {
		out[d] = make([]float64, nPoints)
	}
	if nPoints == 0 || nSources == 0 {
		return out
	}

	workers := o.workers()
	if o.Axis == AxisSources {
		o.runSources(nPoints, nSources, workers, acc, out)
	} else {
		o.runPoints(nPoints, nSources, workers, acc, out)
	}
	return out
}

func (o Options) runPoints(nPoints, nSources, workers int, acc accumulator, out [][]float64) {
	chunks := splitRange(nPoints, workers*chunksPerWorker)
	var done atomic.Int64

	var group errgroup.Group
	group.SetLimit(workers)
	for _, c := range chunks {
		group.Go(func() error {
			buf := make([]float64, len(out))
			for i := c.start; i < c.end; i++ {
				clear(buf)
				for j := 0; j < nSources; j++ {
					acc(i, j, buf)
				}
				for d := range out {
					out[d][i] = buf[d]
				}
			}
			o.report(int(done.Add(int64(c.end-c.start))), nPoints)
			return nil
		})
	}
	_ = group.Wait()
}

func (o Options) runSources(nPoints, nSources, workers int, acc accumulator, out [][]float64) {
	chunks := splitRange(nSources, workers)
	partials := make([][][]float64, len(chunks))
	var done atomic.Int64

	var group errgroup.Group
	group.SetLimit(workers)
	for w, c := range chunks {
		group.Go(func() error {
			partial := make([][]float64, len(out))
			for d := range partial {
				partial[d] = make([]float64, nPoints)
			}
			buf := make([]float64, len(out))
			for i := 0; i < nPoints; i++ {
				clear(buf)
				for j := c.start; j < c.end; j++ {
					acc(i, j, buf)
				}
				for d := range partial {
					partial[d][i] = buf[d]
				}
			}
			partials[w] = partial
			o.report(int(done.Add(int64(c.end-c.start))), nSources)
			return nil
		})
	}
	_ = group.Wait()

	for _, partial := range partials {
		for d := range out {
			for i, v := range partial[d] {
				out[d][i] += v
			}
		}
	}
}

// report forwards progress to the hook, never letting it abort the batch.
func (o Options) report(done, total int) {
	if o.Progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger().Warn("progress callback panicked", "panic", r, "done", done, "total", total)
		}
	}()
	o.Progress(done, total)
}

type span struct{ start, end int }

// splitRange cuts [0, n) into at most parts contiguous spans of nearly equal
// size.
func splitRange(n, parts int) []span {
	if parts < 1 {
		parts = 1
	}
	if parts > n {
		parts = n
	}
	size := (n + parts - 1) / parts
	spans := make([]span, 0, parts)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		spans = append(spans, span{start, end})
	}
	return spans
}
