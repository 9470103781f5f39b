package forward

import (
	"bytes"
	"log/slog"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gravmag/pkg/geometry"
	"gravmag/pkg/kernels"
)

func gridPoints(n int, spacing, upward float64) geometry.Coordinates {
	var c geometry.Coordinates
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			c.Easting = append(c.Easting, -float64(n)*spacing/2+float64(j)*spacing)
			c.Northing = append(c.Northing, -float64(n)*spacing/2+float64(i)*spacing)
			c.Upward = append(c.Upward, upward)
		}
	}
	return c
}

func testModel() ([]geometry.Prism, []float64) {
	var prisms []geometry.Prism
	var density []float64
	for i := 0; i < 7; i++ {
		w := -300 + 90*float64(i)
		s := 200 - 70*float64(i)
		prisms = append(prisms, geometry.Prism{West: w, East: w + 60, South: s, North: s + 45, Bottom: -500 - 20*float64(i), Top: -100 - 10*float64(i)})
		density = append(density, 150*float64(i%3+1)-250)
	}
	return prisms, density
}

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestPrismsScenario(t *testing.T) {
	coords := geometry.Coordinates{Easting: []float64{0, 0}, Northing: []float64{0, 0}, Upward: []float64{0, 1000}}
	prisms := []geometry.Prism{{West: -10, East: 10, South: -10, North: 10, Bottom: 100, Top: 200}}

	gz, err := Prisms(coords, prisms, []float64{1}, kernels.GZ, Options{})
	require.NoError(t, err)
	assert.InEpsilon(t, -1.327133101919355e-10*geometry.SI2MGal, gz[0], 1e-10)
	assert.InEpsilon(t, 3.707427152535424e-12*geometry.SI2MGal, gz[1], 1e-10)
	assert.Greater(t, math.Abs(gz[0]), math.Abs(gz[1]))
}

func TestPrismsParallelStrategies(t *testing.T) {
	coords := gridPoints(9, 80, 10)
	prisms, density := testModel()

	for _, field := range []kernels.Field{kernels.Potential, kernels.GZ, kernels.GEN} {
		serial, err := Prisms(coords, prisms, density, field, Options{Workers: 1})
		require.NoError(t, err)

		// The points axis sums in the same order whatever the worker count
		parallel, err := Prisms(coords, prisms, density, field, Options{Workers: 5})
		require.NoError(t, err)
		assert.Equal(t, serial, parallel)

		bySources, err := Prisms(coords, prisms, density, field, Options{Workers: 3, Axis: AxisSources})
		require.NoError(t, err)
		var largest float64
		for _, v := range serial {
			largest = math.Max(largest, math.Abs(v))
		}
		for i := range serial {
			assert.InDelta(t, serial[i], bySources[i], 1e-12*largest, "%v at %d", field, i)
		}

		again, err := Prisms(coords, prisms, density, field, Options{Workers: 5})
		require.NoError(t, err)
		assert.Equal(t, parallel, again)
	}
}

func TestPrismsDiscardNull(t *testing.T) {
	coords := gridPoints(4, 100, 0)
	prisms, density := testModel()
	base, err := Prisms(coords, prisms, density, kernels.GZ, Options{})
	require.NoError(t, err)

	withNull := append(append([]geometry.Prism(nil), prisms...),
		geometry.Prism{West: 0, East: 0, South: -10, North: 10, Bottom: -50, Top: -10},
		geometry.Prism{West: -50, East: 50, South: -50, North: 50, Bottom: -300, Top: -200},
	)
	withDensity := append(append([]float64(nil), density...), 2670, 0)

	got, err := Prisms(coords, withNull, withDensity, kernels.GZ, Options{})
	require.NoError(t, err)
	assert.Equal(t, base, got)
}

func TestPrismsErrors(t *testing.T) {
	coords := gridPoints(2, 10, 0)
	inverted := []geometry.Prism{{West: 10, East: -10, South: -10, North: 10, Bottom: -20, Top: -10}}

	_, err := Prisms(coords, inverted, []float64{1}, kernels.GZ, Options{})
	assert.ErrorIs(t, err, geometry.ErrDegenerateGeometry)

	_, err = Prisms(coords, inverted, []float64{1}, kernels.GZ, Options{DisableChecks: true})
	assert.NoError(t, err)

	_, err = Prisms(coords, inverted, []float64{1, 2}, kernels.GZ, Options{})
	assert.ErrorIs(t, err, geometry.ErrShape)

	bad := geometry.Coordinates{Easting: []float64{0}, Northing: []float64{0, 1}, Upward: []float64{0}}
	_, err = Prisms(bad, nil, nil, kernels.GZ, Options{})
	assert.ErrorIs(t, err, geometry.ErrShape)

	_, err = Prisms(coords, nil, nil, kernels.BUpward, Options{})
	assert.ErrorIs(t, err, kernels.ErrUnsupportedField)

	_, err = PrismMagneticComponent(coords, nil, nil, kernels.GZ, Options{})
	assert.ErrorIs(t, err, kernels.ErrUnsupportedField)
}

func TestProgress(t *testing.T) {
	coords := gridPoints(10, 50, 0)
	prisms, density := testModel()

	for _, axis := range []Axis{AxisPoints, AxisSources} {
		var calls, maxDone atomic.Int64
		var total atomic.Int64
		opts := Options{Workers: 3, Axis: axis, Progress: func(done, n int) {
			calls.Add(1)
			total.Store(int64(n))
			for {
				cur := maxDone.Load()
				if int64(done) <= cur || maxDone.CompareAndSwap(cur, int64(done)) {
					break
				}
			}
		}}
		_, err := Prisms(coords, prisms, density, kernels.GZ, opts)
		require.NoError(t, err)
		assert.Positive(t, calls.Load(), axis.String())
		assert.Equal(t, total.Load(), maxDone.Load(), axis.String())
	}
}

func TestProgressPanicDoesNotAbort(t *testing.T) {
	coords := gridPoints(6, 50, 0)
	prisms, density := testModel()
	logger, buf := captureLogger()

	want, err := Prisms(coords, prisms, density, kernels.GZ, Options{Workers: 2})
	require.NoError(t, err)

	got, err := Prisms(coords, prisms, density, kernels.GZ, Options{
		Workers:  2,
		Logger:   logger,
		Progress: func(int, int) { panic("broken progress bar") },
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Contains(t, buf.String(), "progress callback panicked")
}

func TestPrismMagnetic(t *testing.T) {
	coords := gridPoints(5, 60, 5)
	prisms, _ := testModel()
	mag := make([]geometry.Vector, len(prisms))
	for i := range mag {
		mag[i] = geometry.MagnetizationFromAngles(1+float64(i)/2, -30+10*float64(i), 5*float64(i))
	}
	mag[2] = geometry.Vector{}

	be, bn, bu, err := PrismMagnetic(coords, prisms, mag, Options{})
	require.NoError(t, err)

	for field, want := range map[kernels.Field][]float64{kernels.BEasting: be, kernels.BNorthing: bn, kernels.BUpward: bu} {
		got, err := PrismMagneticComponent(coords, prisms, mag, field, Options{Axis: AxisSources, Workers: 2})
		require.NoError(t, err)
		for i := range want {
			assert.InDelta(t, want[i], got[i], 1e-9*math.Abs(want[i])+1e-12)
		}
	}

	// Single prism value in nT against the kernel in T
	x, _, _ := kernels.PrismMagnetic(0, 0, 10, prisms[0], mag[0])
	b, _, _, err := PrismMagnetic(geometry.Coordinates{Easting: []float64{0}, Northing: []float64{0}, Upward: []float64{10}},
		prisms[:1], mag[:1], Options{})
	require.NoError(t, err)
	assert.InEpsilon(t, x*1e9, b[0], 1e-12)
}

func TestPrismEdgeWarning(t *testing.T) {
	logger, buf := captureLogger()
	prism := geometry.Prism{West: -10, East: 10, South: -10, North: 10, Bottom: -20, Top: 0}
	coords := geometry.Coordinates{Easting: []float64{10}, Northing: []float64{10}, Upward: []float64{0}}

	v, err := Prisms(coords, []geometry.Prism{prism}, []float64{100}, kernels.GZZ, Options{Logger: logger})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(v[0]) || math.IsInf(v[0], 0))
	assert.Contains(t, buf.String(), "prism edges")
}

func TestPointMasses(t *testing.T) {
	logger, buf := captureLogger()
	coords := geometry.Coordinates{Easting: []float64{0, 0}, Northing: []float64{0, 0}, Upward: []float64{100, -50}}
	sources := geometry.Coordinates{Easting: []float64{0}, Northing: []float64{0}, Upward: []float64{-50}}

	gz, err := PointMasses(coords, sources, []float64{1e9}, kernels.GZ, Options{Logger: logger})
	require.NoError(t, err)
	gm := geometry.GravitationalConstant * 1e9
	assert.InEpsilon(t, gm/(150*150)*geometry.SI2MGal, gz[0], 1e-12)
	assert.Zero(t, gz[1])
	assert.Contains(t, buf.String(), "coincide")

	_, err = PointMasses(coords, sources, []float64{1, 2}, kernels.GZ, Options{})
	assert.ErrorIs(t, err, geometry.ErrShape)
}

func TestPointMassesSpherical(t *testing.T) {
	r := geometry.MeanEarthRadius
	coords := geometry.Spherical{Longitude: []float64{0}, Latitude: []float64{0}, Radius: []float64{r + 1000}}
	sources := geometry.Spherical{Longitude: []float64{0}, Latitude: []float64{0}, Radius: []float64{r - 1000}}

	gz, err := PointMassesSpherical(coords, sources, []float64{1e10}, kernels.GZ, Options{})
	require.NoError(t, err)
	assert.InEpsilon(t, geometry.GravitationalConstant*1e10/4e6*geometry.SI2MGal, gz[0], 1e-9)

	_, err = PointMassesSpherical(coords, sources, []float64{1e10}, kernels.GEE, Options{})
	assert.ErrorIs(t, err, kernels.ErrUnsupportedField)
}

func TestDipoles(t *testing.T) {
	coords := geometry.Coordinates{Easting: []float64{0}, Northing: []float64{0}, Upward: []float64{100}}
	dipoles := geometry.Coordinates{Easting: []float64{0}, Northing: []float64{0}, Upward: []float64{0}}
	_, _, bu, err := Dipoles(coords, dipoles, []geometry.Vector{{Up: 1e6}}, Options{})
	require.NoError(t, err)
	assert.InEpsilon(t, 2e-7*1e9, bu[0], 1e-12)
}

func TestTesseroids(t *testing.T) {
	r := geometry.MeanEarthRadius
	tess := []geometry.Tesseroid{
		{West: -0.1, East: 0.1, South: -0.1, North: 0.1, Bottom: r - 1, Top: r},
		{West: 1, East: 2, South: 1, North: 2, Bottom: r - 5000, Top: r},
	}
	density := []float64{2670, 0}
	coords := geometry.Spherical{Longitude: []float64{0, 0}, Latitude: []float64{0, 0}, Radius: []float64{r + 55000, r + 10}}

	logger, buf := captureLogger()
	values, warnings, err := Tesseroids(coords, tess, density, kernels.GZ, Options{
		Logger:    logger,
		Tesseroid: kernels.TesseroidOptions{MaxDepth: 2},
	})
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Positive(t, values[0])

	// Only the second point is close enough to exhaust two subdivisions
	require.Len(t, warnings, 1)
	assert.Equal(t, kernels.ConvergenceWarning{Tesseroid: 0, Point: 1, Depth: 2}, warnings[0])
	assert.Contains(t, buf.String(), "did not converge")

	inside := geometry.Spherical{Longitude: []float64{1.5}, Latitude: []float64{1.5}, Radius: []float64{r - 100}}
	_, _, err = Tesseroids(inside, tess, density, kernels.GZ, Options{})
	assert.ErrorIs(t, err, geometry.ErrSingularKernel)

	_, _, err = Tesseroids(coords, tess, []float64{1}, kernels.GZ, Options{})
	assert.ErrorIs(t, err, geometry.ErrShape)

	bad := []geometry.Tesseroid{{West: 2, East: 1, South: 1, North: 2, Bottom: r - 5000, Top: r}}
	_, _, err = Tesseroids(coords, bad, []float64{1}, kernels.GZ, Options{})
	assert.ErrorIs(t, err, geometry.ErrDegenerateGeometry)
}

func TestModelEvaluate(t *testing.T) {
	coords := gridPoints(4, 100, 0)
	prisms, density := testModel()
	points := geometry.Coordinates{Easting: []float64{30, -40}, Northing: []float64{0, 25}, Upward: []float64{-200, -350}}
	masses := []float64{5e9, -2e9}

	model := Model{Prisms: prisms, Densities: density, Points: points, Masses: masses}
	assert.Equal(t, len(prisms)+2, model.Sources())

	got, err := model.Evaluate(coords, kernels.GZ, Options{})
	require.NoError(t, err)

	a, err := Prisms(coords, prisms, density, kernels.GZ, Options{})
	require.NoError(t, err)
	b, err := PointMasses(coords, points, masses, kernels.GZ, Options{})
	require.NoError(t, err)
	for i := range got {
		assert.InDelta(t, a[i]+b[i], got[i], 1e-12)
	}

	_, err = Model{Masses: []float64{1}}.Evaluate(coords, kernels.GZ, Options{})
	assert.ErrorIs(t, err, geometry.ErrShape)
}

func TestSphericalModelEvaluate(t *testing.T) {
	r := geometry.MeanEarthRadius
	tess := []geometry.Tesseroid{{West: -1, East: 1, South: -1, North: 1, Bottom: r - 10000, Top: r}}
	density := []float64{2670}
	points := geometry.Spherical{Longitude: []float64{3}, Latitude: []float64{-2}, Radius: []float64{r - 20000}}
	masses := []float64{1e14}
	coords := geometry.Spherical{
		Longitude: []float64{0, 2, -3},
		Latitude:  []float64{0, 1, 4},
		Radius:    []float64{r + 10000, r + 15000, r + 20000},
	}

	model := SphericalModel{Tesseroids: tess, Densities: density, Points: points, Masses: masses}
	assert.Equal(t, 2, model.Sources())

	got, warnings, err := model.Evaluate(coords, kernels.GZ, Options{})
	require.NoError(t, err)

	a, tessWarnings, err := Tesseroids(coords, tess, density, kernels.GZ, Options{})
	require.NoError(t, err)
	assert.Equal(t, tessWarnings, warnings)
	b, err := PointMassesSpherical(coords, points, masses, kernels.GZ, Options{})
	require.NoError(t, err)
	for i := range got {
		assert.InDelta(t, a[i]+b[i], got[i], 1e-12*math.Abs(a[i]+b[i]))
	}

	_, _, err = model.Evaluate(coords, kernels.GZZ, Options{})
	assert.ErrorIs(t, err, kernels.ErrUnsupportedField)

	_, _, err = SphericalModel{Masses: []float64{1}}.Evaluate(coords, kernels.GZ, Options{})
	assert.ErrorIs(t, err, geometry.ErrShape)
}

func TestSplitRange(t *testing.T) {
	spans := splitRange(10, 3)
	assert.Equal(t, []span{{0, 4}, {4, 8}, {8, 10}}, spans)
	assert.Len(t, splitRange(2, 8), 2)
	assert.Empty(t, splitRange(0, 4))

	axis, err := ParseAxis("sources")
	require.NoError(t, err)
	assert.Equal(t, AxisSources, axis)
	_, err = ParseAxis("diagonal")
	assert.Error(t, err)
}
