package gui

import (
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"

	"github.com/itohio/sscd/pkg/pump"
	"github.com/itohio/sscd/pkg/rig"
)

type pumpControl int

const (
	pumpDiode pumpControl = iota
	pumpShutter
)

// handlePumpToggle flips the laser diode or the shutter. The pump port is
// opened for the duration of the command only.
func handlePumpToggle(state *appState, c pumpControl) {
	r, err := rig.Open(state.cfg, rig.Pump, state.mock, state.log)
	if err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	defer r.Close()

	want := !state.laser
	if c == pumpShutter {
		want = !state.shutter
	}

	if err := setPump(r.Pump, c, want); err != nil {
		dialog.ShowError(errors.Wrap(err, "pump laser"), state.window)
		return
	}

	if c == pumpDiode {
		state.laser = want
	} else {
		state.shutter = want
	}
	updatePumpButtons(state)
}

func setPump(p *pump.Pump, c pumpControl, on bool) error {
	switch {
	case c == pumpDiode && on:
		return p.On()
	case c == pumpDiode:
		return p.Off()
	case on:
		return p.OpenShutter()
	}
	return p.CloseShutter()
}

// updatePumpButtons highlights the controls that are on.
func updatePumpButtons(state *appState) {
	updatePumpButton(state.laserBtn, state.laser)
	updatePumpButton(state.shutterBtn, state.shutter)
}

func updatePumpButton(btn *widget.Button, on bool) {
	if on {
		btn.Importance = widget.HighImportance
	} else {
		btn.Importance = widget.MediumImportance
	}
	btn.Refresh()
}
