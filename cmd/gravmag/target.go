package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"gravmag/internal/models"
	"gravmag/pkg/geometry"
	"gravmag/pkg/grid"
)

// targetFlags selects where a field is evaluated: a regular grid, a
// profile or the points of a survey file.
type targetFlags struct {
	region  []float64
	shape   []int
	spacing float64
	height  float64
	pad     float64
	profile []float64
	size    int
	survey  string
}

func (t *targetFlags) register(flags *pflag.FlagSet) {
	flags.Float64SliceVar(&t.region, "region", nil, "grid region as west,east,south,north")
	flags.IntSliceVar(&t.shape, "shape", nil, "grid shape as rows,cols")
	flags.Float64Var(&t.spacing, "spacing", 0, "grid spacing in meters (instead of --shape)")
	flags.Float64Var(&t.height, "height", 0, "upward coordinate of the grid or profile")
	flags.Float64Var(&t.pad, "pad", 0, "pad the region by this many meters")
	flags.Float64SliceVar(&t.profile, "profile", nil, "profile end points as e1,n1,e2,n2")
	flags.IntVar(&t.size, "size", 100, "number of profile points")
	flags.StringVar(&t.survey, "points", "", "CSV file whose points are used instead of a grid")
}

// gridSpec builds the grid. fallback is used when --region is not given.
func (t *targetFlags) gridSpec(fallback *grid.Region) (grid.RegularSpec, error) {
	var spec grid.RegularSpec
	switch {
	case len(t.region) == 4:
		spec.Region = grid.Region{West: t.region[0], East: t.region[1], South: t.region[2], North: t.region[3]}
	case len(t.region) != 0:
		return spec, fmt.Errorf("--region needs 4 values, got %d", len(t.region))
	case fallback != nil:
		spec.Region = *fallback
	default:
		return spec, fmt.Errorf("--region is required")
	}
	if t.pad != 0 {
		spec.Region = spec.Region.Pad(t.pad)
	}
	switch len(t.shape) {
	case 0:
	case 2:
		spec.Rows, spec.Cols = t.shape[0], t.shape[1]
	default:
		return spec, fmt.Errorf("--shape needs 2 values, got %d", len(t.shape))
	}
	spec.Spacing = t.spacing
	spec.Upward = t.height
	if _, _, err := spec.Shape(); err != nil {
		return spec, err
	}
	return spec, nil
}

// evaluate runs p on the selected target and writes the CSV to output.
// It returns the values written. The CSV goes to a temporary file renamed
// over output on success, so a failed run leaves output untouched.
func (t *targetFlags) evaluate(p grid.Predictor, name, output string, fallback *grid.Region) ([]float64, error) {
	f, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".*")
	if err != nil {
		return nil, fmt.Errorf("error creating output: %w", err)
	}
	values, err := t.write(f, p, name, fallback)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(f.Name(), 0644)
	}
	if err == nil {
		err = os.Rename(f.Name(), output)
	}
	if err != nil {
		os.Remove(f.Name())
		return nil, err
	}
	return values, nil
}

func (t *targetFlags) write(f *os.File, p grid.Predictor, name string, fallback *grid.Region) ([]float64, error) {
	switch {
	case t.survey != "":
		s, err := models.LoadSurvey(t.survey)
		if err != nil {
			return nil, err
		}
		values, err := p.Predict(s.Coordinates)
		if err != nil {
			return nil, err
		}
		return values, models.WriteSurvey(f, s.Coordinates, name, values)

	case len(t.profile) != 0:
		if len(t.profile) != 4 {
			return nil, fmt.Errorf("--profile needs 4 values, got %d", len(t.profile))
		}
		profile := grid.Profile{
			Point1: [2]float64{t.profile[0], t.profile[1]},
			Point2: [2]float64{t.profile[2], t.profile[3]},
			Size:   t.size,
			Upward: t.height,
		}
		result, err := grid.PredictProfile(p, profile)
		if err != nil {
			return nil, err
		}
		return result.Values, models.WriteProfile(f, result, name)
	}

	spec, err := t.gridSpec(fallback)
	if err != nil {
		return nil, err
	}
	g, err := grid.PredictGrid(p, spec, name)
	if err != nil {
		return nil, err
	}
	return g.Values, models.WriteGrid(f, g)
}

// predictorFunc adapts a function to grid.Predictor.
type predictorFunc func(coords geometry.Coordinates) ([]float64, error)

func (f predictorFunc) Predict(coords geometry.Coordinates) ([]float64, error) { return f(coords) }
