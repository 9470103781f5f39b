package models

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gravmag/pkg/geometry"
	"gravmag/pkg/grid"
)

func TestReadSurvey(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantLen     int
		wantWeights bool
		wantErr     bool
	}{
		{"no header", "0,0,10,1.5\n100,0,12,2.5\n", 2, false, false},
		{"header reordered", "value,upward,northing,easting\n1,10,0,0\n", 1, false, false},
		{"weights", "# comment\neasting,northing,upward,value,weight\n0,0,0,1,2\n1,1,0,1,0.5\n", 2, true, false},
		{"spherical names", "longitude,latitude,height,g_z\n1,2,100,5\n", 1, false, false},
		{"bad number", "0,0,zero,1\n", 0, false, true},
		{"missing column", "easting,northing,value\n0,0,1\n", 0, false, true},
		{"short record", "0,0,1\n", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ReadSurvey(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadSurvey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if s.Len() != tt.wantLen || s.Coordinates.Len() != tt.wantLen {
				t.Errorf("got %d values and %d points, want %d", s.Len(), s.Coordinates.Len(), tt.wantLen)
			}
			if (s.Weights != nil) != tt.wantWeights {
				t.Errorf("weights = %v", s.Weights)
			}
		})
	}

	s, err := ReadSurvey(strings.NewReader("value,upward,northing,easting\n7,10,20,30\n"))
	if err != nil {
		t.Fatal(err)
	}
	if e, n, u := s.Coordinates.At(0); e != 30 || n != 20 || u != 10 || s.Values[0] != 7 {
		t.Errorf("columns mixed up: %v %v %v %v", e, n, u, s.Values[0])
	}
}

func TestSurveyRoundTrip(t *testing.T) {
	coords := geometry.Coordinates{
		Easting:  []float64{0, 1.25, -3},
		Northing: []float64{5, 6, 7},
		Upward:   []float64{100, 101, 102.5},
	}
	values := []float64{0.1, -2e-7, 3}
	var buf bytes.Buffer
	if err := WriteSurvey(&buf, coords, "g_z", values); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "easting,northing,upward,g_z\n") {
		t.Errorf("unexpected header in %q", buf.String())
	}
	s, err := ReadSurvey(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatal(err)
	}
	for i := range values {
		if s.Values[i] != values[i] || s.Coordinates.Upward[i] != coords.Upward[i] {
			t.Errorf("record %d changed in the round trip", i)
		}
	}

	if err := WriteSurvey(&buf, coords, "", values[:1]); !errors.Is(err, geometry.ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}

func TestGridRoundTrip(t *testing.T) {
	spec := grid.RegularSpec{Region: grid.Region{West: 0, East: 300, South: 10, North: 30}, Rows: 3, Cols: 4, Upward: 50}
	coords, err := spec.Coordinates()
	if err != nil {
		t.Fatal(err)
	}
	values := make([]float64, coords.Len())
	for i := range values {
		values[i] = math.Sqrt(float64(i))
	}
	rows, cols, _ := spec.Shape()
	e, n, err := spec.Axes()
	if err != nil {
		t.Fatal(err)
	}
	g, err := grid.New("b_u", e, n, 50, values)
	if err != nil {
		t.Fatal(err)
	}
	if g.Rows() != rows || g.Cols() != cols {
		t.Fatalf("grid is %d×%d, want %d×%d", g.Rows(), g.Cols(), rows, cols)
	}

	path := filepath.Join(t.TempDir(), "grid.csv")
	if err := SaveGrid(path, g); err != nil {
		t.Fatal(err)
	}
	back, err := LoadGrid(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Name != "b_u" || back.Rows() != 3 || back.Cols() != 4 || back.Upward != 50 {
		t.Fatalf("unexpected grid %s %d×%d at %g", back.Name, back.Rows(), back.Cols(), back.Upward)
	}
	for i := range values {
		if back.Values[i] != values[i] {
			t.Errorf("value %d: got %g, want %g", i, back.Values[i], values[i])
		}
	}
}

func TestReadGridNodeOrder(t *testing.T) {
	tests := map[string]string{
		"swapped easting": "easting,northing,upward,g_z\n0,0,5,1\n10,0,5,2\n10,1,5,3\n0,1,5,4\n",
		"swapped rows":    "easting,northing,upward,g_z\n0,0,5,1\n10,0,5,2\n0,2,5,3\n10,1,5,4\n",
		"short row":       "easting,northing,upward,g_z\n0,0,5,1\n10,0,5,2\n0,1,5,3\n",
		"shifted easting": "easting,northing,upward,g_z\n0,0,5,1\n10,0,5,2\n0,1,5,3\n20,1,5,4\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadGrid(strings.NewReader(content))
			if !errors.Is(err, geometry.ErrShape) {
				t.Errorf("expected ErrShape, got %v", err)
			}
		})
	}

	g, err := ReadGrid(strings.NewReader("easting,northing,upward,g_z\n0,0,5,1\n10,0,5,2\n0,1,5,3\n10,1,5,4\n"))
	if err != nil {
		t.Fatal(err)
	}
	if g.Rows() != 2 || g.Cols() != 2 || g.At(1, 0) != 3 {
		t.Errorf("unexpected grid %+v", g)
	}
}

func TestModelFile(t *testing.T) {
	content := `name: dyke
prisms:
  - bounds: [-500, 500, -100, 100, -1000, -200]
    density: 300
    magnetization: {intensity: 2, inclination: 90}
  - bounds: [1000, 1200, 0, 200, -500, -100]
    density: -100
points:
  - position: [0, 0, -300]
    mass: 1.0e+10
`
	path := filepath.Join(t.TempDir(), "model.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadModelFile(path)
	if err != nil {
		t.Fatal(err)
	}

	g, err := m.Gravity()
	if err != nil {
		t.Fatal(err)
	}
	if g.Sources() != 3 || g.Densities[1] != -100 || g.Masses[0] != 1e10 {
		t.Errorf("unexpected gravity model %+v", g)
	}

	prisms, mag, err := m.Magnetic()
	if err != nil {
		t.Fatal(err)
	}
	if len(prisms) != 1 || len(mag) != 1 {
		t.Fatalf("got %d magnetized prisms, want 1", len(prisms))
	}
	if math.Abs(mag[0].Up+2) > 1e-12 || math.Abs(mag[0].East) > 1e-12 {
		t.Errorf("vertical magnetization down should point -up, got %+v", mag[0])
	}

	if err := SaveModelFile(path, m); err != nil {
		t.Fatal(err)
	}
	again, err := LoadModelFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.Name != "dyke" || len(again.Prisms) != 2 || len(again.Points) != 1 {
		t.Errorf("model changed in the round trip: %+v", again)
	}
}

func TestInvalidModelFile(t *testing.T) {
	tests := map[string]string{
		"empty":            "name: nothing\n",
		"bounds":           "prisms:\n  - bounds: [0, 1, 0, 1]\n",
		"inverted":         "prisms:\n  - bounds: [1, 0, 0, 1, 0, 1]\n",
		"point":            "points:\n  - position: [0, 0]\n    mass: 1\n",
		"not yaml":         "prisms: [\n",
		"dipole":           "dipoles:\n  - position: [0, 0]\n",
		"system":           "coordinates: polar\npoints:\n  - position: [0, 0, 0]\n    mass: 1\n",
		"mixed":            "coordinates: spherical\nprisms:\n  - bounds: [0, 1, 0, 1, 0, 1]\n",
		"cartesian tess":   "tesseroids:\n  - bounds: [0, 1, 0, 1, -10, 0]\n    density: 1\n",
		"tesseroid bounds": "coordinates: spherical\ntesseroids:\n  - bounds: [0, 1, 0, 1]\n",
		"latitude":         "coordinates: spherical\npoints:\n  - position: [0, 95, 0]\n    mass: 1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "model.yaml")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadModelFile(path); err == nil {
				t.Error("invalid model accepted")
			}
		})
	}
}

func TestSphericalModelFile(t *testing.T) {
	content := `coordinates: spherical
tesseroids:
  - bounds: [-1, 1, -1, 1, -30000, 0]
    density: 200
points:
  - position: [3, -2, -20000]
    mass: 1.0e+14
`
	path := filepath.Join(t.TempDir(), "model.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadModelFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsSpherical() {
		t.Fatal("model should be spherical")
	}
	sph, err := m.SphericalGravity()
	if err != nil {
		t.Fatal(err)
	}
	if sph.Sources() != 2 {
		t.Errorf("got %d sources, want 2", sph.Sources())
	}
	tess := sph.Tesseroids[0]
	if tess.Top != geometry.MeanEarthRadius || tess.Bottom != geometry.MeanEarthRadius-30000 || tess.West != -1 {
		t.Errorf("unexpected tesseroid %+v", tess)
	}
	if sph.Points.Longitude[0] != 3 || sph.Points.Latitude[0] != -2 || sph.Points.Radius[0] != geometry.MeanEarthRadius-20000 {
		t.Errorf("unexpected point %+v", sph.Points)
	}
}

func TestDipoles(t *testing.T) {
	m := &ModelFile{Dipoles: []DipoleBody{
		{Position: []float64{1, 2, -3}, Moment: Magnetization{East: 5}},
		{Position: []float64{0, 0, -10}, Moment: Magnetization{Intensity: 2, Inclination: 90}},
	}}
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	positions, moments := m.Dipoles()
	if positions.Len() != 2 || positions.Upward[0] != -3 || moments[0].East != 5 {
		t.Errorf("unexpected dipoles %+v %+v", positions, moments)
	}
	if math.Abs(moments[1].Up+2) > 1e-12 {
		t.Errorf("vertical moment down should point -up, got %+v", moments[1])
	}
}

func TestToSpherical(t *testing.T) {
	c := geometry.Coordinates{Easting: []float64{10}, Northing: []float64{-20}, Upward: []float64{500}}
	s := ToSpherical(c)
	if s.Longitude[0] != 10 || s.Latitude[0] != -20 || s.Radius[0] != geometry.MeanEarthRadius+500 {
		t.Errorf("unexpected conversion %+v", s)
	}
	s.Longitude[0] = 0
	if c.Easting[0] != 10 {
		t.Error("conversion must not alias the coordinates")
	}
}
