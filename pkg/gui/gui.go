// Package gui is the desktop front-end of the scan rig.
package gui

import (
	"context"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"github.com/itohio/sscd/pkg/config"
	"github.com/itohio/sscd/pkg/scope"
)

// Options configures the front-end.
type Options struct {
	Config     *config.Config
	ConfigPath string // Settings are saved here
	Mock       bool   // Simulate every instrument
}

// appState holds the application state.
type appState struct {
	cfg     *config.Config
	cfgPath string
	mock    bool
	log     *logrus.Entry

	window      fyne.Window
	scopeWidget *scope.ScopeWidget
	startBtn    *widget.Button
	stopBtn     *widget.Button
	laserBtn    *widget.Button
	shutterBtn  *widget.Button
	strategy    *widget.Select
	status      *widget.Label

	// Running scan series (protected by mu)
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	laser   bool
	shutter bool
}

// Run opens the main window and blocks until it is closed.
func Run(opts Options, log *logrus.Entry) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	application := app.NewWithID("com.itohio.sscd")

	window := application.NewWindow("MHz Steady State CD")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	state := &appState{
		cfg:     opts.Config,
		cfgPath: opts.ConfigPath,
		mock:    opts.Mock,
		log:     log.WithField("component", "gui"),
		window:  window,
	}

	toolbar := createToolbar(state)

	state.scopeWidget = scope.New()
	state.scopeWidget.SetRange(state.cfg.Scan.Start, state.cfg.Scan.Stop)

	window.SetContent(container.NewBorder(toolbar, nil, nil, nil, state.scopeWidget))
	window.SetOnClosed(func() {
		stopScan(state)
		waitScan(state)
	})
	window.ShowAndRun()
}

// createToolbar creates the toolbar with scan controls on the left and pump
// controls on the right.
func createToolbar(state *appState) fyne.CanvasObject {
	state.startBtn = widget.NewButtonWithIcon("", theme.MediaPlayIcon(), func() {
		startScan(state)
	})
	state.stopBtn = widget.NewButtonWithIcon("", theme.MediaStopIcon(), func() {
		stopScan(state)
	})
	state.stopBtn.Disable()

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	state.strategy = widget.NewSelect(strategies, func(s string) {
		state.cfg.Scan.Strategy = s
	})
	state.strategy.SetSelected(state.cfg.Scan.Strategy)

	state.status = widget.NewLabel("idle")

	state.laserBtn = widget.NewButton("Laser", func() {
		handlePumpToggle(state, pumpDiode)
	})
	state.shutterBtn = widget.NewButton("Shutter", func() {
		handlePumpToggle(state, pumpShutter)
	})
	if !state.hasPump() {
		state.laserBtn.Disable()
		state.shutterBtn.Disable()
	}

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(state.startBtn, state.stopBtn, settingsBtn, state.strategy, state.status),
		container.NewHBox(state.laserBtn, state.shutterBtn),
		nil,
	)
}

var strategies = []string{config.StrategyTable, config.StrategyInterpolated, config.StrategyComputed}

func (s *appState) hasPump() bool {
	return s.mock || s.cfg.Devices.Pump.Port != ""
}
