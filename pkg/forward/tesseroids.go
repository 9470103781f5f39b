package forward

import (
	"fmt"
	"sort"
	"sync"

	"gravmag/pkg/geometry"
	"gravmag/pkg/kernels"
)

// Tesseroids computes the potential (J/kg) or g_z (mGal, downward) of
// constant-density tesseroids on points in geocentric spherical coordinates.
//
// Points inside any tesseroid fail with geometry.ErrSingularKernel before
// any integration. Tesseroids whose discretization hit the depth cap are
// reported in the returned warnings, sorted by point and tesseroid, and
// logged; their values are still included.
func Tesseroids(coords geometry.Spherical, tesseroids []geometry.Tesseroid, density []float64, field kernels.Field, opts Options) ([]float64, []kernels.ConvergenceWarning, error) {
	if err := coords.Validate(); err != nil {
		return nil, nil, err
	}
	if len(density) != len(tesseroids) {
		return nil, nil, fmt.Errorf("%d tesseroids but %d densities: %w", len(tesseroids), len(density), geometry.ErrShape)
	}
	kernel, err := kernels.NewTesseroidKernel(field, opts.Tesseroid)
	if err != nil {
		return nil, nil, err
	}
	if !opts.DisableChecks {
		if err := geometry.ValidateTesseroids(tesseroids); err != nil {
			return nil, nil, err
		}
	}
	if err := checkOutside(coords, tesseroids); err != nil {
		return nil, nil, err
	}

	keep := make([]int, 0, len(tesseroids))
	for i, d := range density {
		if d != 0 {
			keep = append(keep, i)
		}
	}

	var (
		mu       sync.Mutex
		warnings []kernels.ConvergenceWarning
	)
	out := opts.run(coords.Len(), len(keep), 1, func(i, j int, acc []float64) {
		t := keep[j]
		// Points were checked against every tesseroid, Evaluate cannot fail here.
		v, converged, _ := kernel.Evaluate(coords.Longitude[i], coords.Latitude[i], coords.Radius[i], tesseroids[t], density[t])
		if !converged {
			mu.Lock()
			warnings = append(warnings, kernels.ConvergenceWarning{Tesseroid: t, Point: i, Depth: kernel.MaxDepth()})
			mu.Unlock()
		}
		acc[0] += v
	})[0]

	sort.Slice(warnings, func(a, b int) bool {
		if warnings[a].Point != warnings[b].Point {
			return warnings[a].Point < warnings[b].Point
		}
		return warnings[a].Tesseroid < warnings[b].Tesseroid
	})
	for _, w := range warnings {
		opts.logger().Warn("tesseroid discretization did not converge",
			"tesseroid", w.Tesseroid, "point", w.Point, "depth", w.Depth)
	}

	scaleGravity(field, out)
	return out, warnings, nil
}

func checkOutside(coords geometry.Spherical, tesseroids []geometry.Tesseroid) error {
	for i := 0; i < coords.Len(); i++ {
		for j, t := range tesseroids {
			if t.Contains(coords.Longitude[i], coords.Latitude[i], coords.Radius[i]) {
				return fmt.Errorf("point %d inside tesseroid %d: %w", i, j, geometry.ErrSingularKernel)
			}
		}
	}
	return nil
}
