package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gravmag/internal/models"
	"gravmag/pkg/transform"
)

func newContinueCmd(a *app) *cobra.Command {
	var (
		height     float64
		derivative int
		output     string
	)
	cmd := &cobra.Command{
		Use:   "continue GRID.csv",
		Short: "Upward continue or differentiate a grid",
		Long: `Transform a regular grid written by "gravmag forward" or "gravmag fit" in
the wavenumber domain. --height continues the field upward (negative values
continue downward). --derivative computes the upward derivative of that
order, after the continuation when both are given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if height == 0 && derivative == 0 {
				return fmt.Errorf("nothing to do, set --height or --derivative")
			}
			start := time.Now()
			g, err := models.LoadGrid(args[0])
			if err != nil {
				return err
			}
			a.logger.Info("transforming grid", "input", args[0], "rows", g.Rows(), "cols", g.Cols(),
				"height", height, "derivative", derivative)

			out := g
			if height != 0 {
				if out, err = transform.UpwardContinuation(out, height); err != nil {
					return err
				}
			}
			if derivative != 0 {
				if out, err = transform.DerivativeUpward(out, derivative); err != nil {
					return err
				}
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			if err := models.SaveGrid(output, out); err != nil {
				return err
			}

			var s summary
			s.add("grid", "%d×%d", out.Rows(), out.Cols())
			s.add("height", "%g", out.Upward)
			s.add("region", "%s", out.Region())
			s.valueRange(out.Name, out.Values)
			s.elapsed(start)
			s.render(cmd.OutOrStdout())
			a.console.Infof("wrote %s", output)
			return nil
		},
	}
	cmd.Flags().Float64Var(&height, "height", 0, "continuation height in meters")
	cmd.Flags().IntVar(&derivative, "derivative", 0, "order of the upward derivative")
	cmd.Flags().StringVarP(&output, "output", "o", "continued.csv", "output CSV file")
	return cmd
}
