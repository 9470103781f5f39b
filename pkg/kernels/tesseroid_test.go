package kernels

import (
	"errors"
	"math"
	"testing"

	"gravmag/pkg/geometry"
)

const earthRadius = geometry.MeanEarthRadius

func TestNewTesseroidKernel(t *testing.T) {
	k, err := NewTesseroidKernel(GZ, TesseroidOptions{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if k.ratio != 2.5 || k.maxDepth != DefaultMaxDepth || len(k.lon.nodes) != 2 {
		t.Errorf("Defaults not applied: %+v", k)
	}
	// Order 2 Gauss-Legendre nodes are ±1/√3 with unit weights
	for i, x := range k.lat.nodes {
		if math.Abs(math.Abs(x)-1/math.Sqrt(3)) > 1e-12 || math.Abs(k.lat.weights[i]-1) > 1e-12 {
			t.Errorf("Unexpected node %g weight %g", x, k.lat.weights[i])
		}
	}

	k, _ = NewTesseroidKernel(Potential, TesseroidOptions{})
	if k.ratio != 1 {
		t.Errorf("Expected potential ratio 1, got %g", k.ratio)
	}

	if _, err := NewTesseroidKernel(GEE, TesseroidOptions{}); !errors.Is(err, ErrUnsupportedField) {
		t.Errorf("Expected ErrUnsupportedField, got %v", err)
	}
	if _, err := NewTesseroidKernel(GZ, TesseroidOptions{GLQDegrees: [3]int{2, 0, 2}}); err == nil {
		t.Error("Expected an error for a zero GLQ degree")
	}
}

// TestTesseroidSubdivisionConvergence uses a thin tesseroid close enough to be split once
func TestTesseroidSubdivisionConvergence(t *testing.T) {
	tess := geometry.Tesseroid{West: -0.1, East: 0.1, South: -0.1, North: 0.1, Bottom: earthRadius - 1, Top: earthRadius}
	lon, lat, r := 0.0, 0.0, earthRadius+55000

	adaptive, err := NewTesseroidKernel(GZ, TesseroidOptions{})
	if err != nil {
		t.Fatal(err)
	}
	// A tiny ratio disables the subdivision
	single, err := NewTesseroidKernel(GZ, TesseroidOptions{DistanceSizeRatio: 1e-9})
	if err != nil {
		t.Fatal(err)
	}

	splitLon, splitLat, splitRad := adaptive.needsSplit(lon, lat, r, tess)
	if !splitLon || !splitLat || splitRad {
		t.Fatalf("Expected a horizontal split, got (%v, %v, %v)", splitLon, splitLat, splitRad)
	}

	a, converged, err := adaptive.Evaluate(lon, lat, r, tess, 2670)
	if err != nil || !converged {
		t.Fatalf("Adaptive evaluation failed: converged=%v err=%v", converged, err)
	}
	s, _, err := single.Evaluate(lon, lat, r, tess, 2670)
	if err != nil {
		t.Fatal(err)
	}
	if a == s {
		t.Error("Subdivision should change the result")
	}
	if relDiff(a, s) > 1e-3 {
		t.Errorf("Adaptive %g and single cell %g differ by more than 1e-3", a, s)
	}
}

// TestTesseroidShell compares a spherical shell of tesseroids with a point mass
func TestTesseroidShell(t *testing.T) {
	density := 2670.0
	bottom, top := earthRadius-10000, earthRadius
	var shell []geometry.Tesseroid
	for lon := -180.0; lon < 180; lon += 15 {
		for lat := -90.0; lat < 90; lat += 15 {
			shell = append(shell, geometry.Tesseroid{West: lon, East: lon + 15, South: lat, North: lat + 15, Bottom: bottom, Top: top})
		}
	}
	mass := density * 4 / 3 * math.Pi * (top*top*top - bottom*bottom*bottom)
	gm := geometry.GravitationalConstant * mass

	for _, field := range []Field{GZ, Potential} {
		k, err := NewTesseroidKernel(field, TesseroidOptions{})
		if err != nil {
			t.Fatal(err)
		}
		for _, p := range [][2]float64{{0, 0}, {37, -61}} {
			r := top + 200000
			var total float64
			for _, tess := range shell {
				v, converged, err := k.Evaluate(p[0], p[1], r, tess, density)
				if err != nil || !converged {
					t.Fatalf("%v: converged=%v err=%v", field, converged, err)
				}
				total += v
			}
			want := gm / r
			if field == GZ {
				want = gm / (r * r)
			}
			if relDiff(total, want) > 5e-4 {
				t.Errorf("%v at %v: shell %g, point mass %g", field, p, total, want)
			}
		}
	}
}

// TestTesseroidMaxDepth forces the discretization to hit its cap
func TestTesseroidMaxDepth(t *testing.T) {
	tess := geometry.Tesseroid{West: -0.1, East: 0.1, South: -0.1, North: 0.1, Bottom: earthRadius - 1, Top: earthRadius}
	k, err := NewTesseroidKernel(GZ, TesseroidOptions{MaxDepth: 2})
	if err != nil {
		t.Fatal(err)
	}
	v, converged, err := k.Evaluate(0, 0, earthRadius+10, tess, 2670)
	if err != nil {
		t.Fatal(err)
	}
	if converged {
		t.Error("Expected the discretization to stop at the depth cap")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		t.Errorf("Expected a finite positive best-effort value, got %g", v)
	}
}

func TestTesseroidInside(t *testing.T) {
	tess := geometry.Tesseroid{West: -1, East: 1, South: -1, North: 1, Bottom: earthRadius - 1000, Top: earthRadius}
	k, _ := NewTesseroidKernel(Potential, TesseroidOptions{})
	if _, _, err := k.Evaluate(0, 0, earthRadius-500, tess, 1000); !errors.Is(err, geometry.ErrSingularKernel) {
		t.Errorf("Expected ErrSingularKernel, got %v", err)
	}

	v, converged, err := k.Evaluate(0, 0, earthRadius+100, tess, 0)
	if err != nil || !converged || v != 0 {
		t.Errorf("Zero density should give 0, got %g (converged=%v err=%v)", v, converged, err)
	}
}
