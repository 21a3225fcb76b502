package main

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/itohio/sscd/pkg/plot"
	"github.com/itohio/sscd/pkg/store"
)

func NewPlotCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:     "plot [result.csv...]",
		Short:   "Render result files as spectrum images",
		GroupID: gData,
		Long: `Render result files as spectrum images.

Each file is drawn as signal versus wavelength with the noise as error bars
and saved next to it as PNG, or to --out when a single file is given. The
image format follows the --out extension.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if out != "" && len(args) > 1 {
				return errors.New("--out takes a single result file")
			}
			for _, path := range args {
				results, err := store.LoadCSV(path)
				if err != nil {
					return err
				}

				dst := out
				if dst == "" {
					dst = plot.ImagePath(path)
				}
				if err := plot.Save(dst, filepath.Base(path), results); err != nil {
					return err
				}
				logrus.Infof("wrote %s", dst)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output image (png, svg or pdf)")

	return cmd
}

func NewRunsCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:     "runs",
		Short:   "List the scans recorded in the run database",
		GroupID: gData,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dbPath == "" {
				dbPath = cfg.Store.Database
			}
			if dbPath == "" {
				return errors.New("no run database configured, pass --db")
			}

			db, err := store.OpenDB(dbPath, logrus.NewEntry(logrus.StandardLogger()))
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.Runs()
			if err != nil {
				return err
			}

			for _, run := range runs {
				results, err := db.Results(run.ID)
				if err != nil {
					return err
				}
				status := onOff(run.Finished != nil, "complete", "aborted")
				cmd.Printf("%s  %-12s %3d wavelengths  %s  %s  %s\n",
					run.Started.Format(time.DateTime), run.Strategy, len(results), status, run.Path, run.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "run database (default from config)")

	return cmd
}
