package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"gravmag/internal/models"
	"gravmag/pkg/config"
	"gravmag/pkg/eqsources"
	"gravmag/pkg/geometry"
	"gravmag/pkg/grid"
	"gravmag/pkg/solver"
	"gravmag/pkg/store"
)

const fitLongDescription = `Fit equivalent sources to a CSV survey and predict the field on a grid.

The survey has easting, northing, upward and value columns and an optional
weight column. Flags override the eqsources section of the configuration.
Spherical sources read the survey as longitude, latitude and height above
the mean Earth radius (the header may name the columns so) and cannot be
stored.
With --store the fitted model is saved and can be reused by "gravmag predict".

Example:
  gravmag fit survey.csv --damping cv --height 500 --spacing 100 -o gridded.csv --store models.db`

// defaultShape is used for output grids when neither --shape nor --spacing
// is given.
var defaultShape = []int{50, 50}

// snapshotter is implemented by the models that can be stored.
type snapshotter interface {
	Snapshot() (eqsources.Snapshot, error)
}

func newFitCmd(a *app) *cobra.Command {
	var (
		sourceType    string
		damping       string
		depthType     string
		depth         float64
		blockSize     float64
		sourceSpacing float64
		storePath     string
		name          string
		output        string
		target        targetFlags
	)
	cmd := &cobra.Command{
		Use:   "fit SURVEY.csv",
		Short: "Fit equivalent sources to a survey",
		Long:  fitLongDescription,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			es := &a.cfg.EqSources
			flags := cmd.Flags()
			if flags.Changed("source-type") {
				es.SourceType = sourceType
			}
			if flags.Changed("damping") {
				d, err := config.ParseDamping(damping)
				if err != nil {
					return err
				}
				es.Damping = d
			}
			if flags.Changed("depth-type") {
				es.DepthType = depthType
			}
			if flags.Changed("depth") {
				es.Depth = depth
			}
			if flags.Changed("block-size") {
				es.BlockSize = blockSize
			}
			if flags.Changed("source-spacing") {
				es.Spacing = sourceSpacing
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			start := time.Now()
			survey, err := models.LoadSurvey(args[0])
			if err != nil {
				return err
			}
			model, err := a.fitModel(cmd, survey)
			if err != nil {
				if errors.Is(err, solver.ErrSingular) {
					a.console.Warn("the system is singular, try a larger damping")
				}
				return fmt.Errorf("fitting %s: %w", args[0], err)
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}

			var s summary
			s.add("source type", "%s", es.SourceType)
			s.count("data", survey.Len())
			if n, err := sourceCount(model); err == nil {
				s.count("sources", n)
			}
			if d, err := fittedDamping(model); err == nil {
				s.add("damping", "%.3g", d)
			}
			predicted, err := model.Predict(survey.Coordinates)
			if err != nil {
				return err
			}
			s.add("R²", "%.6f", solver.R2(survey.Values, predicted, survey.Weights))
			s.add("RMSE", "%.6g", solver.RMSE(survey.Values, predicted, survey.Weights))

			if storePath != "" {
				id, err := a.saveModel(cmd, storePath, name, model)
				if err != nil {
					return err
				}
				s.add("model id", "%s", id)
			}

			if output != "" {
				if !flags.Changed("height") {
					target.height = floats.Max(survey.Coordinates.Upward)
				}
				if len(target.shape) == 0 && target.spacing == 0 {
					target.shape = defaultShape
				}
				region, err := grid.RegionOf(survey.Coordinates)
				if err != nil {
					return err
				}
				values, err := target.evaluate(model, "predicted", output, &region)
				if err != nil {
					return fmt.Errorf("predicting: %w", err)
				}
				s.count("predicted points", len(values))
				s.valueRange("predicted", values)
				a.console.Infof("wrote %s", output)
			}
			s.elapsed(start)
			s.render(cmd.OutOrStdout())
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&sourceType, "source-type", "", "points, layer, prisms or spherical")
	flags.StringVar(&damping, "damping", "", "damping parameter, or \"cv\" for cross-validation")
	flags.StringVar(&depthType, "depth-type", "", "default, relative, offset or constant")
	flags.Float64Var(&depth, "depth", 0, "source depth in meters")
	flags.Float64Var(&blockSize, "block-size", 0, "block-median the data before placing sources")
	flags.Float64Var(&sourceSpacing, "source-spacing", 0, "spacing of a source layer")
	flags.StringVar(&storePath, "store", "", "save the fitted model in this database")
	flags.StringVar(&name, "name", "", "name of the stored model")
	flags.StringVarP(&output, "output", "o", "", "write predictions to this CSV file")
	target.register(flags)
	return cmd
}

func (a *app) saveModel(cmd *cobra.Command, path, name string, model any) (string, error) {
	snap, ok := model.(snapshotter)
	if !ok {
		return "", fmt.Errorf("%s sources cannot be stored", a.cfg.EqSources.SourceType)
	}
	snapshot, err := snap.Snapshot()
	if err != nil {
		return "", err
	}
	db, err := store.Open(path, a.logger)
	if err != nil {
		return "", err
	}
	defer db.Close()
	id, err := db.Save(cmd.Context(), name, snapshot)
	if err != nil {
		return "", err
	}
	a.console.Infof("saved model %s to %s", id, path)
	return id, nil
}

// fitModel fits the equivalent sources selected by the configuration to the
// survey. Spherical sources read the survey as longitude, latitude and
// height above the mean Earth radius.
func (a *app) fitModel(cmd *cobra.Command, survey models.Survey) (grid.Predictor, error) {
	engine := a.engine(cmd, "fit")
	a.console.Infof("fitting %s sources to %s data", a.cfg.EqSources.SourceType, formatCount(survey.Len()))
	if a.cfg.EqSources.SourceType == "spherical" {
		m := a.cfg.NewSpherical(engine)
		if err := m.Fit(models.ToSpherical(survey.Coordinates), survey.Values, survey.Weights); err != nil {
			return nil, err
		}
		return sphericalModel{m}, nil
	}
	model, err := a.cfg.NewModel(engine)
	if err != nil {
		return nil, err
	}
	if err := model.Fit(survey.Coordinates, survey.Values, survey.Weights); err != nil {
		return nil, err
	}
	return model, nil
}

// sphericalModel predicts spherical sources on coordinates holding
// longitude, latitude and height.
type sphericalModel struct {
	*eqsources.Spherical
}

func (m sphericalModel) Predict(coords geometry.Coordinates) ([]float64, error) {
	return m.Spherical.Predict(models.ToSpherical(coords))
}

func sourceCount(model any) (int, error) {
	m, ok := model.(interface{ Coefficients() ([]float64, error) })
	if !ok {
		return 0, fmt.Errorf("unknown model %T", model)
	}
	coefs, err := m.Coefficients()
	return len(coefs), err
}

func fittedDamping(model any) (float64, error) {
	if m, ok := model.(interface{ FittedDamping() (float64, error) }); ok {
		return m.FittedDamping()
	}
	return 0, fmt.Errorf("unknown model %T", model)
}
