package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/itohio/sscd/pkg/config"
	"github.com/itohio/sscd/pkg/rig"
	"github.com/itohio/sscd/pkg/store"
)

func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scan",
		Short:   "Run a series of CD scans",
		GroupID: gScan,
		Long: `Run a series of CD scans.

Every scan steps the monochromator through the planned wavelengths, averages
the lock-in snapshots at each of them and appends one row to
<output>/<stub>_<index>.csv. Interrupt with Ctrl+C; rows written so far are
kept.

Strategies:
  table         visit every calibration table entry
  interpolated  visit every wavelength in [start, stop] using the table
  computed      visit every wavelength in [start, stop] using the fitted formula`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyScanFlags(cmd.Flags(), cfg); err != nil {
				return err
			}
			return runScan(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.StringP("calibration", "c", "", "calibration table (wl,pos per line)")
	f.StringP("output", "o", "", "output directory")
	f.StringP("stub", "s", "", "result file name stub")
	f.DurationP("integration-time", "t", 0, "snapshot collection time per wavelength")
	f.Duration("settle-time", 0, "pause between tuning and auto-phasing")
	f.IntP("count", "n", 0, "number of scans (0 = until interrupted)")
	f.Int("start", 0, "first wavelength (nm)")
	f.Int("stop", 0, "last wavelength (nm)")
	f.Int("wavelength-offset", 0, "offset added to the modulator wavelength (nm)")
	f.String("strategy", "", "scan strategy: table, interpolated or computed")
	f.Bool("plot", false, "render a PNG next to every result file")
	f.String("db", "", "SQLite file recording every run")

	return cmd
}

// applyScanFlags overrides the configuration with the flags that were set.
func applyScanFlags(f *pflag.FlagSet, c *config.Config) error {
	sc := &c.Scan
	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Changed(name) {
			err = apply()
		}
	}

	set("calibration", func() (e error) { sc.Calibration, e = f.GetString("calibration"); return })
	set("output", func() (e error) { sc.OutputDir, e = f.GetString("output"); return })
	set("stub", func() (e error) { sc.Stub, e = f.GetString("stub"); return })
	set("integration-time", func() (e error) { sc.IntegrationTime, e = f.GetDuration("integration-time"); return })
	set("settle-time", func() (e error) { sc.SettleTime, e = f.GetDuration("settle-time"); return })
	set("count", func() (e error) { sc.Count, e = f.GetInt("count"); return })
	set("start", func() (e error) { sc.Start, e = f.GetInt("start"); return })
	set("stop", func() (e error) { sc.Stop, e = f.GetInt("stop"); return })
	set("wavelength-offset", func() (e error) { sc.WavelengthOffset, e = f.GetInt("wavelength-offset"); return })
	set("strategy", func() (e error) { sc.Strategy, e = f.GetString("strategy"); return })
	set("plot", func() (e error) { sc.Plot, e = f.GetBool("plot"); return })
	set("db", func() (e error) { c.Store.Database, e = f.GetString("db"); return })

	return err
}

func runScan(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	plan, err := rig.Plan(cfg)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"strategy": plan.Strategy,
		"steps":    len(plan.Steps),
		"park":     plan.Park,
	}).Info("scan planned")

	r, err := openRig(rig.Scan)
	if err != nil {
		return err
	}
	defer r.Close()

	if !r.LIA.IsConnected() {
		return errors.New("lock-in amplifier did not identify itself")
	}

	var db *store.DB
	if cfg.Store.Database != "" {
		if db, err = store.OpenDB(cfg.Store.Database, logrus.NewEntry(logrus.StandardLogger())); err != nil {
			return err
		}
		defer db.Close()
	}

	_, runner, err := r.Series(db)
	if err != nil {
		return err
	}

	err = runner.Run(ctx, plan)
	if errors.Is(err, context.Canceled) {
		logrus.Info("scan interrupted")
		return nil
	}
	return err
}
