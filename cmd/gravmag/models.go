package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"gravmag/pkg/eqsources"
	"gravmag/pkg/grid"
	"gravmag/pkg/store"
)

const defaultStore = "gravmag.db"

func newPredictCmd(a *app) *cobra.Command {
	var (
		storePath string
		output    string
		target    targetFlags
	)
	cmd := &cobra.Command{
		Use:   "predict MODEL_ID",
		Short: "Predict the field of a stored model",
		Long: `Predict the field of a model saved by "gravmag fit --store" on a grid,
a profile or the points of a CSV file. Without --region the grid covers
the sources of the model.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			db, err := store.Open(storePath, a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			snap, err := db.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			model, err := eqsources.Restore(snap)
			if err != nil {
				return err
			}
			region, err := grid.RegionOf(snap.Coordinates())
			if err != nil {
				return err
			}
			if len(target.shape) == 0 && target.spacing == 0 {
				target.shape = defaultShape
			}

			values, err := target.evaluate(model, "predicted", output, &region)
			if err != nil {
				return fmt.Errorf("predicting: %w", err)
			}

			var s summary
			s.add("model", "%s (%s)", args[0], snap.Kind)
			s.count("sources", snap.Sources())
			s.count("points", len(values))
			s.valueRange("predicted", values)
			s.elapsed(start)
			s.render(cmd.OutOrStdout())
			a.console.Infof("wrote %s", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&storePath, "store", defaultStore, "model database")
	cmd.Flags().StringVarP(&output, "output", "o", "predicted.csv", "output CSV file")
	target.register(cmd.Flags())
	return cmd
}

func newModelsCmd(a *app) *cobra.Command {
	var storePath string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List or delete stored models",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&storePath, "store", defaultStore, "model database")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored models, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := store.Open(storePath, a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := db.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				cmd.Println("no stored models")
				return nil
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"ID", "Name", "Kind", "Sources", "Damping", "Created"})
			table.SetBorder(false)
			for _, r := range records {
				table.Append([]string{
					r.ID, r.Name, r.Kind,
					humanize.Comma(int64(r.Sources)),
					fmt.Sprintf("%.3g", r.Damping),
					humanize.Time(r.CreatedAt),
				})
			}
			table.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete MODEL_ID...",
		Short: "Delete stored models",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.Open(storePath, a.logger)
			if err != nil {
				return err
			}
			defer db.Close()
			for _, id := range args {
				if err := db.Delete(cmd.Context(), id); err != nil {
					return err
				}
				a.console.Infof("deleted model %s", id)
			}
			return nil
		},
	})
	return cmd
}
