package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"gravmag/internal/models"
	"gravmag/pkg/forward"
	"gravmag/pkg/geometry"
	"gravmag/pkg/kernels"
)

const forwardLongDescription = `Compute the field of a YAML source model.

Gravity fields (potential, g_z, g_e, g_n and the gradient tensor) use the
density of prisms and the mass of points. Magnetic fields (b_e, b_n, b_u)
use prisms that carry a magnetization and dipoles.

Models with "coordinates: spherical" hold tesseroids and point masses. Their
region is given in degrees of longitude and latitude and --height is the
height above the mean Earth radius. Tesseroids provide the potential and g_z,
integrated with the settings of the tesseroid configuration section.

Example:
  gravmag forward model.yaml --field g_z --region 0,5000,0,5000 --shape 51,51 --height 100 -o gz.csv`

func newForwardCmd(a *app) *cobra.Command {
	var (
		fieldName string
		output    string
		target    targetFlags
	)
	cmd := &cobra.Command{
		Use:   "forward MODEL.yaml",
		Short: "Compute the field of a source model",
		Long:  forwardLongDescription,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, err := kernels.ParseField(fieldName)
			if err != nil {
				return err
			}
			start := time.Now()
			model, err := models.LoadModelFile(args[0])
			if err != nil {
				return err
			}

			predict, sources, err := a.forwardPredictor(cmd, model, field)
			if err != nil {
				return err
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}

			a.console.Infof("computing %s of %d sources", field, sources)
			values, err := target.evaluate(predict, field.String(), output, nil)
			if err != nil {
				return fmt.Errorf("forward modelling: %w", err)
			}
			a.logger.Info("forward model written", "model", args[0], "field", field.String(),
				"points", len(values), "output", output)

			var s summary
			s.add("field", "%s", field)
			s.count("sources", sources)
			s.count("points", len(values))
			s.valueRange(field.String(), values)
			s.elapsed(start)
			s.render(cmd.OutOrStdout())
			a.console.Infof("wrote %s", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&fieldName, "field", "f", kernels.GZ.String(), "field to compute")
	cmd.Flags().StringVarP(&output, "output", "o", "forward.csv", "output CSV file")
	target.register(cmd.Flags())
	return cmd
}

// forwardPredictor returns the evaluation of model for field and the number
// of sources taking part.
func (a *app) forwardPredictor(cmd *cobra.Command, model *models.ModelFile, field kernels.Field) (predictorFunc, int, error) {
	engine := a.engine(cmd, field.String())
	switch {
	case model.IsSpherical():
		if field.IsMagnetic() {
			return nil, 0, fmt.Errorf("spherical models have no magnetization, %v: %w", field, kernels.ErrUnsupportedField)
		}
		sph, err := model.SphericalGravity()
		if err != nil {
			return nil, 0, err
		}
		engine.Tesseroid = a.cfg.TesseroidOptions(field)
		return func(coords geometry.Coordinates) ([]float64, error) {
			values, warnings, err := sph.Evaluate(models.ToSpherical(coords), field, engine)
			if len(warnings) > 0 {
				a.console.Warnf("%d tesseroid evaluations reached the maximum depth, see the log", len(warnings))
			}
			return values, err
		}, sph.Sources(), nil

	case field.IsMagnetic():
		prisms, magnetization, err := model.Magnetic()
		if err != nil {
			return nil, 0, err
		}
		dipoles, moments := model.Dipoles()
		if len(prisms) == 0 && dipoles.Len() == 0 {
			return nil, 0, fmt.Errorf("model has no magnetized prisms or dipoles")
		}
		return func(coords geometry.Coordinates) ([]float64, error) {
			out := make([]float64, coords.Len())
			if len(prisms) > 0 {
				v, err := forward.PrismMagneticComponent(coords, prisms, magnetization, field, engine)
				if err != nil {
					return nil, err
				}
				floats.Add(out, v)
			}
			if dipoles.Len() > 0 {
				be, bn, bu, err := forward.Dipoles(coords, dipoles, moments, engine)
				if err != nil {
					return nil, err
				}
				floats.Add(out, magneticComponent(field, be, bn, bu))
			}
			return out, nil
		}, len(prisms) + dipoles.Len(), nil
	}

	gravity, err := model.Gravity()
	if err != nil {
		return nil, 0, err
	}
	if gravity.Sources() == 0 {
		return nil, 0, fmt.Errorf("model has no prisms or point masses")
	}
	return func(coords geometry.Coordinates) ([]float64, error) {
		return gravity.Evaluate(coords, field, engine)
	}, gravity.Sources(), nil
}

func magneticComponent(field kernels.Field, be, bn, bu []float64) []float64 {
	switch field {
	case kernels.BEasting:
		return be
	case kernels.BNorthing:
		return bn
	}
	return bu
}
