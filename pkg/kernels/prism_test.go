package kernels

import (
	"math"
	"testing"

	"gravmag/pkg/geometry"
)

var testPrism = geometry.Prism{West: -10, East: 10, South: -10, North: 10, Bottom: 100, Top: 200}

func relDiff(a, b float64) float64 {
	return math.Abs(a-b) / math.Max(math.Abs(a), math.Abs(b))
}

func mustPrismFunc(t *testing.T, field Field) PrismFunc {
	t.Helper()
	fn, err := PrismGravityFunc(field)
	if err != nil {
		t.Fatalf("PrismGravityFunc(%v): %v", field, err)
	}
	return fn
}

// TestPrismScenario evaluates g_z below the prism at two heights
func TestPrismScenario(t *testing.T) {
	gz := mustPrismFunc(t, GZ)

	near := gz(0, 0, 0, testPrism, 1)
	far := gz(0, 0, 1000, testPrism, 1)

	// Reference values of the closed-form solution
	if relDiff(near, -1.327133101919355e-10) > 1e-10 {
		t.Errorf("Expected g_z(0,0,0) = -1.327133101919355e-10, got %.16g", near)
	}
	if relDiff(far, 3.707427152535424e-12) > 1e-10 {
		t.Errorf("Expected g_z(0,0,1000) = 3.707427152535424e-12, got %.16g", far)
	}
	if math.Abs(near) <= math.Abs(far) {
		t.Errorf("Closer point should see a larger field: |%g| <= |%g|", near, far)
	}
}

// TestPrismFarFieldDecay checks that the field magnitude decreases with distance
func TestPrismFarFieldDecay(t *testing.T) {
	fields := []Field{Potential, GZ, GZZ}
	for _, field := range fields {
		fn := mustPrismFunc(t, field)
		previous := math.Inf(1)
		for _, distance := range []float64{300, 500, 1000, 2000, 5000, 10000} {
			v := math.Abs(fn(0, 0, 150-distance, testPrism, 2670))
			if v >= previous {
				t.Errorf("%v: magnitude %g at %g m not smaller than %g", field, v, distance, previous)
			}
			previous = v
		}
	}
}

// TestPrismPointMassEquivalence compares a prism with a point mass at its center far away
func TestPrismPointMassEquivalence(t *testing.T) {
	density := 2670.0
	mass := density * testPrism.Volume()
	ce, cn, cu := testPrism.Center()

	points := [][3]float64{
		{3000, 2000, -5000},
		{-8000, 500, 1000},
		{0, 0, 10000},
	}
	for _, field := range []Field{Potential, GEasting, GNorthing, GZ, GEE, GNN, GZZ, GEN, GEZ, GNZ} {
		prism := mustPrismFunc(t, field)
		point, err := PointMassFunc(field)
		if err != nil {
			t.Fatalf("PointMassFunc(%v): %v", field, err)
		}
		for _, p := range points {
			want := point(p[0], p[1], p[2], ce, cn, cu, mass)
			got := prism(p[0], p[1], p[2], testPrism, density)
			// Components that vanish by symmetry are compared in absolute terms
			if math.Abs(want) < 1e-20 {
				if math.Abs(got) > 1e-18 {
					t.Errorf("%v at %v: expected ~0, got %g", field, p, got)
				}
				continue
			}
			if relDiff(got, want) > 1e-3 {
				t.Errorf("%v at %v: prism %g, point mass %g", field, p, got, want)
			}
		}
	}
}

// TestPrismDerivatives compares the field components with finite differences of the lower order fields
func TestPrismDerivatives(t *testing.T) {
	e, n, u := 37.0, -12.0, 250.0
	h := 1e-3
	density := 1.0

	pot := mustPrismFunc(t, Potential)
	ge := mustPrismFunc(t, GEasting)
	gn := mustPrismFunc(t, GNorthing)
	gz := mustPrismFunc(t, GZ)

	diff := func(fn PrismFunc, de, dn, du float64) float64 {
		return (fn(e+de, n+dn, u+du, testPrism, density) - fn(e-de, n-dn, u-du, testPrism, density)) / (2 * h)
	}

	tests := []struct {
		field Field
		want  float64
	}{
		{GEasting, diff(pot, h, 0, 0)},
		{GNorthing, diff(pot, 0, h, 0)},
		{GZ, -diff(pot, 0, 0, h)},
		{GEE, diff(ge, h, 0, 0)},
		{GNN, diff(gn, 0, h, 0)},
		{GZZ, -diff(gz, 0, 0, h)},
		{GEN, diff(ge, 0, h, 0)},
		{GEZ, -diff(ge, 0, 0, h)},
		{GNZ, -diff(gn, 0, 0, h)},
	}
	for _, tt := range tests {
		got := mustPrismFunc(t, tt.field)(e, n, u, testPrism, density)
		if relDiff(got, tt.want) > 1e-6 {
			t.Errorf("%v: analytic %g, finite difference %g", tt.field, got, tt.want)
		}
	}
}

// TestPrismLaplace verifies that the gradient tensor is traceless outside the prism
func TestPrismLaplace(t *testing.T) {
	for _, p := range [][3]float64{{37, -12, 250}, {0, 0, 0}, {-500, 300, 150}} {
		var trace, scale float64
		for _, field := range []Field{GEE, GNN, GZZ} {
			v := mustPrismFunc(t, field)(p[0], p[1], p[2], testPrism, 1)
			trace += v
			scale = math.Max(scale, math.Abs(v))
		}
		if math.Abs(trace) > 1e-9*scale {
			t.Errorf("Trace at %v is %g (scale %g)", p, trace, scale)
		}
	}
}

// TestPrismSingularPoints makes sure points on faces, edges and vertices give finite values
func TestPrismSingularPoints(t *testing.T) {
	points := []struct {
		name    string
		e, n, u float64
		edge    bool
	}{
		{"vertical edge", 10, 10, 150, true},
		{"vertex", 10, 10, 200, true},
		{"top edge", 10, 0, 200, true},
		{"top face", 0, 0, 200, false},
		{"side face", 10, 0, 150, false},
		{"inside", 0, 0, 150, false},
	}
	fields := []Field{Potential, GEasting, GNorthing, GZ, GEE, GNN, GZZ, GEN, GEZ, GNZ}

	for _, pt := range points {
		t.Run(pt.name, func(t *testing.T) {
			if OnEdge(pt.e, pt.n, pt.u, testPrism) != pt.edge {
				t.Errorf("OnEdge: expected %v", pt.edge)
			}
			for _, field := range fields {
				v := mustPrismFunc(t, field)(pt.e, pt.n, pt.u, testPrism, 1000)
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Errorf("%v is not finite: %g", field, v)
				}
			}
			be, bn, bu := PrismMagnetic(pt.e, pt.n, pt.u, testPrism, geometry.Vector{East: 1, North: 2, Up: -3})
			for _, v := range []float64{be, bn, bu} {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Errorf("Magnetic field is not finite: (%g, %g, %g)", be, bn, bu)
				}
			}
		})
	}
}

func TestSafeFunctions(t *testing.T) {
	if v := safeAtan2(1, 0); v != math.Pi/2 {
		t.Errorf("safeAtan2(1, 0) = %g", v)
	}
	if v := safeAtan2(-1, 0); v != -math.Pi/2 {
		t.Errorf("safeAtan2(-1, 0) = %g", v)
	}
	if v := safeAtan2(0, 0); v != 0 {
		t.Errorf("safeAtan2(0, 0) = %g", v)
	}
	if v := safeLog(0, 0, 0, 0); v != 0 {
		t.Errorf("safeLog at r = 0 gave %g", v)
	}
	if v := safeLog(-2, 0, 0, 2); math.Abs(v+math.Log(4)) > 1e-15 {
		t.Errorf("safeLog on the negative axis gave %g, expected %g", v, -math.Log(4))
	}
	// Both branches agree for negative x
	x, y, z := -3.0, 1.0, 2.0
	r := math.Sqrt(x*x + y*y + z*z)
	if math.Abs(safeLog(x, y, z, r)-math.Log(x+r)) > 1e-12 {
		t.Errorf("safeLog(%g, %g, %g) = %g, expected %g", x, y, z, safeLog(x, y, z, r), math.Log(x+r))
	}
}

// TestPrismMagneticDipole compares the prism magnetic field with a dipole far away
func TestPrismMagneticDipole(t *testing.T) {
	m := geometry.MagnetizationFromAngles(3, 45, -20)
	volume := testPrism.Volume()
	moment := geometry.Vector{East: m.East * volume, North: m.North * volume, Up: m.Up * volume}
	ce, cn, cu := testPrism.Center()

	for _, p := range [][3]float64{{3000, 2000, -5000}, {0, 0, 8000}, {-6000, -4000, 150}} {
		be, bn, bu := PrismMagnetic(p[0], p[1], p[2], testPrism, m)
		de, dn, du := Dipole(p[0], p[1], p[2], ce, cn, cu, moment)
		scale := math.Sqrt(de*de + dn*dn + du*du)
		for i, pair := range [][2]float64{{be, de}, {bn, dn}, {bu, du}} {
			if math.Abs(pair[0]-pair[1]) > 1e-3*scale {
				t.Errorf("Component %d at %v: prism %g, dipole %g", i, p, pair[0], pair[1])
			}
		}

		for field, want := range map[Field]float64{BEasting: be, BNorthing: bn, BUpward: bu} {
			got, err := PrismMagneticComponent(field, p[0], p[1], p[2], testPrism, m)
			if err != nil {
				t.Fatalf("PrismMagneticComponent(%v): %v", field, err)
			}
			if math.Abs(got-want) > 1e-12*scale {
				t.Errorf("%v: component %g, full %g", field, got, want)
			}
		}
	}

	if _, err := PrismMagneticComponent(GZ, 0, 0, 0, testPrism, m); err == nil {
		t.Error("Expected an error for a gravity field")
	}
}

// TestPrismEdgeExtension evaluates points on the lines that extend the prism
// edges outside the body, where the field is smooth, and compares them with
// points 1e-6 m away.
func TestPrismEdgeExtension(t *testing.T) {
	m := geometry.Vector{East: 1, North: -2, Up: 3}
	tests := []struct {
		name      string
		on, close [3]float64
	}{
		{"north-top edge, east side", [3]float64{50, 10, 200}, [3]float64{50, 10 + 1e-6, 200 + 1e-6}},
		{"north-top edge, west side", [3]float64{-50, 10, 200}, [3]float64{-50, 10 + 1e-6, 200 + 1e-6}},
		{"east-top edge, north side", [3]float64{10, 50, 200}, [3]float64{10 + 1e-6, 50, 200 + 1e-6}},
		{"east-south edge, above", [3]float64{10, -10, 300}, [3]float64{10 + 1e-6, -10 - 1e-6, 300}},
	}
	for _, tt := range tests {
		p, q := tt.on, tt.close
		for _, field := range []Field{GEN, GEZ, GNZ, GEE, GNN, GZZ} {
			fn := mustPrismFunc(t, field)
			on := fn(p[0], p[1], p[2], testPrism, 1)
			off := fn(q[0], q[1], q[2], testPrism, 1)
			if math.Abs(on-off) > 1e-4*math.Max(math.Abs(off), 1e-13) {
				t.Errorf("%s: %v is %g on the line, %g next to it", tt.name, field, on, off)
			}
		}

		be, bn, bu := PrismMagnetic(p[0], p[1], p[2], testPrism, m)
		ce, cn, cu := PrismMagnetic(q[0], q[1], q[2], testPrism, m)
		scale := math.Max(math.Abs(ce), math.Max(math.Abs(cn), math.Abs(cu)))
		for _, c := range [][2]float64{{be, ce}, {bn, cn}, {bu, cu}} {
			if math.Abs(c[0]-c[1]) > 1e-4*scale {
				t.Errorf("%s: magnetic field (%g, %g, %g) on the line, (%g, %g, %g) next to it",
					tt.name, be, bn, bu, ce, cn, cu)
				break
			}
		}

		for field, want := range map[Field]float64{BEasting: be, BNorthing: bn, BUpward: bu} {
			got, err := PrismMagneticComponent(field, p[0], p[1], p[2], testPrism, m)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-want) > 1e-12*scale {
				t.Errorf("%s: %v component %g, full field %g", tt.name, field, got, want)
			}
		}
	}
}

// TestPrismEdgeExtensionMirror compares points mirrored across the northing
// axis of a prism centred on it.
func TestPrismEdgeExtensionMirror(t *testing.T) {
	tests := []struct {
		field Field
		sign  float64
	}{
		{GNZ, 1},
		{GNN, 1},
		{GZZ, 1},
		{GEN, -1},
		{GEZ, -1},
	}
	for _, tt := range tests {
		fn := mustPrismFunc(t, tt.field)
		east := fn(50, 10, 200, testPrism, 1)
		west := fn(-50, 10, 200, testPrism, 1)
		if math.Abs(east-tt.sign*west) > 1e-9*math.Abs(east) {
			t.Errorf("%v: %g east, %g west", tt.field, east, west)
		}
	}
}
