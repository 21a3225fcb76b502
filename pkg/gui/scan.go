package gui

import (
	"context"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"github.com/pkg/errors"

	"github.com/itohio/sscd/pkg/config"
	"github.com/itohio/sscd/pkg/rig"
	"github.com/itohio/sscd/pkg/sample"
	"github.com/itohio/sscd/pkg/scan"
	"github.com/itohio/sscd/pkg/store"
)

// startScan opens the rig and runs the configured scan series in the
// background. Results are plotted as they arrive.
func startScan(state *appState) {
	state.mu.Lock()
	running := state.cancel != nil
	state.mu.Unlock()
	if running {
		return
	}

	plan, err := rig.Plan(state.cfg)
	if err != nil {
		dialog.ShowError(err, state.window)
		return
	}

	r, err := rig.Open(state.cfg, rig.Scan, state.mock, state.log)
	if err != nil {
		dialog.ShowError(err, state.window)
		return
	}

	var db *store.DB
	if path := state.cfg.Store.Database; path != "" {
		if db, err = store.OpenDB(path, state.log); err != nil {
			r.Close()
			dialog.ShowError(err, state.window)
			return
		}
	}

	sc := state.cfg.Scan
	scanner, err := r.Scanner(scan.Options{IntegrationTime: sc.IntegrationTime, SettleTime: sc.SettleTime})
	if err != nil {
		closeSession(r, db)
		dialog.ShowError(err, state.window)
		return
	}
	scanner.OnResult(func(res sample.Result) {
		fyne.Do(func() {
			state.scopeWidget.Add(res)
		})
	})

	sinks := rig.Sinks(&sc, db)
	runner := scan.NewRunner(scanner, sc.OutputDir, sc.Stub, sc.Count, func(run scan.RunInfo) (scan.RunSink, error) {
		label := runLabel(run, sc.Count)
		fyne.Do(func() {
			state.scopeWidget.Reset(label)
			state.status.SetText(label)
		})
		return sinks(run)
	}, state.log)

	if sc.Strategy == config.StrategyTable {
		state.scopeWidget.SetRange(0, 0)
	} else {
		state.scopeWidget.SetRange(sc.Start, sc.Stop)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	state.mu.Lock()
	state.cancel = cancel
	state.done = done
	state.mu.Unlock()
	setRunning(state, true)

	go func() {
		defer close(done)
		err := runner.Run(ctx, plan)
		closeSession(r, db)

		state.mu.Lock()
		state.cancel = nil
		state.done = nil
		state.mu.Unlock()

		fyne.Do(func() {
			setRunning(state, false)
			state.status.SetText(finishedLabel(err))
			if err != nil && !errors.Is(err, context.Canceled) {
				dialog.ShowError(err, state.window)
			}
		})
	}()
}

// stopScan cancels the running series. The current device transfer finishes
// first; the series goroutine restores the controls when it exits.
func stopScan(state *appState) {
	state.mu.Lock()
	cancel := state.cancel
	state.mu.Unlock()

	if cancel != nil {
		state.log.Info("stopping scan")
		cancel()
	}
}

// waitScan blocks until the running series has released the rig.
func waitScan(state *appState) {
	state.mu.Lock()
	done := state.done
	state.mu.Unlock()

	if done != nil {
		<-done
	}
}

func closeSession(r *rig.Rig, db *store.DB) {
	r.Close()
	if db != nil {
		db.Close()
	}
}

func setRunning(state *appState, running bool) {
	if running {
		state.startBtn.Disable()
		state.stopBtn.Enable()
		state.strategy.Disable()
		return
	}
	state.startBtn.Enable()
	state.stopBtn.Disable()
	state.strategy.Enable()
}

// runLabel names a run of a series of count scans (0 = unbounded).
func runLabel(run scan.RunInfo, count int) string {
	if count == 0 {
		return fmt.Sprintf("scan %d", run.Index+1)
	}
	return fmt.Sprintf("scan %d/%d", run.Index+1, count)
}

func finishedLabel(err error) string {
	switch {
	case err == nil:
		return "done"
	case errors.Is(err, context.Canceled):
		return "stopped"
	}
	return "failed"
}
