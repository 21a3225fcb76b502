package rig

import (
	"github.com/pkg/errors"

	"github.com/itohio/sscd/pkg/calibration"
	"github.com/itohio/sscd/pkg/config"
	"github.com/itohio/sscd/pkg/plot"
	"github.com/itohio/sscd/pkg/scan"
	"github.com/itohio/sscd/pkg/store"
)

// Plan loads the calibration table when the strategy needs one and resolves
// the scan plan.
func Plan(cfg *config.Config) (*scan.Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var table *calibration.Table
	if cfg.Scan.Strategy != config.StrategyComputed {
		t, err := calibration.Load(cfg.Scan.Calibration)
		if err != nil {
			return nil, err
		}
		table = t
	}

	plan, err := scan.NewPlan(&cfg.Scan, cfg.Stage.Backoff, table)
	if err != nil {
		return nil, errors.Wrap(err, "failed to plan scan")
	}
	return plan, nil
}

// Sinks returns the sink factory for a scan series: every run writes its CSV
// file, is recorded in db when db is not nil, and is rendered to PNG when
// cfg.Plot is set.
func Sinks(cfg *config.ScanConfig, db *store.DB) scan.SinkFactory {
	return func(run scan.RunInfo) (scan.RunSink, error) {
		c, err := store.CreateCSV(run.Path)
		if err != nil {
			return nil, err
		}
		sinks := store.Multi{c}

		if db != nil {
			w, err := db.BeginRun(run)
			if err != nil {
				c.Close()
				return nil, err
			}
			sinks = append(sinks, w)
		}

		if cfg.Plot {
			sinks = append(sinks, plot.NewSink(run))
		}
		return sinks, nil
	}
}

// Series builds the scanner and the runner for the configured scan series.
func (r *Rig) Series(db *store.DB) (*scan.Scanner, *scan.Runner, error) {
	sc := &r.cfg.Scan
	s, err := r.Scanner(scan.Options{IntegrationTime: sc.IntegrationTime, SettleTime: sc.SettleTime})
	if err != nil {
		return nil, nil, err
	}
	return s, scan.NewRunner(s, sc.OutputDir, sc.Stub, sc.Count, Sinks(sc, db), r.log), nil
}
