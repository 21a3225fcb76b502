package gui

import (
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"

	"github.com/itohio/sscd/pkg/link"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createDevicesTab(state),
		createScanTab(state),
		createStageTab(state),
		createStoreTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// field binds a form entry to a configuration value.
type field struct {
	label  string
	entry  *widget.Entry
	object fyne.CanvasObject // Shown instead of entry when set
	apply  func(text string) error
}

func newField(label, text string, apply func(string) error) field {
	e := widget.NewEntry()
	e.SetText(text)
	return field{label: label, entry: e, apply: apply}
}

func stringField(label string, v *string) field {
	return newField(label, *v, func(s string) error {
		*v = strings.TrimSpace(s)
		return nil
	})
}

func intField(label string, v *int) field {
	return newField(label, strconv.Itoa(*v), func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return errors.Wrapf(err, "%s", label)
		}
		*v = n
		return nil
	})
}

func int32Field(label string, v *int32) field {
	return newField(label, strconv.FormatInt(int64(*v), 10), func(s string) error {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return errors.Wrapf(err, "%s", label)
		}
		*v = int32(n)
		return nil
	})
}

func floatField(label string, v *float64) field {
	return newField(label, strconv.FormatFloat(*v, 'g', -1, 64), func(s string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return errors.Wrapf(err, "%s", label)
		}
		*v = f
		return nil
	})
}

func durationField(label string, v *time.Duration) field {
	return newField(label, v.String(), func(s string) error {
		d, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil {
			return errors.Wrapf(err, "%s", label)
		}
		*v = d
		return nil
	})
}

// applyFields stores every field value. Nothing after the first invalid
// field is applied.
func applyFields(fields []field) error {
	for _, f := range fields {
		if err := f.apply(f.entry.Text); err != nil {
			return err
		}
	}
	return nil
}

// createForm builds a form over fields that saves the configuration on submit.
func createForm(state *appState, fields []field, extra ...*widget.FormItem) *widget.Form {
	form := &widget.Form{}
	for _, f := range fields {
		var obj fyne.CanvasObject = f.entry
		if f.object != nil {
			obj = f.object
		}
		form.Items = append(form.Items, widget.NewFormItem(f.label, obj))
	}
	form.Items = append(form.Items, extra...)
	form.OnSubmit = func() {
		if err := applyFields(fields); err != nil {
			dialog.ShowError(err, state.window)
			return
		}
		saveConfig(state)
	}
	return form
}

func saveConfig(state *appState) {
	if err := state.cfg.Validate(); err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	if state.cfgPath == "" {
		return
	}
	if err := state.cfg.Save(state.cfgPath); err != nil {
		dialog.ShowError(err, state.window)
	}
}

// createDevicesTab creates the serial port selection of every instrument.
func createDevicesTab(state *appState) *container.TabItem {
	ports, err := link.Ports()
	if err != nil {
		state.log.WithError(err).Warn("failed to list serial ports")
	}

	dev := &state.cfg.Devices
	fields := []field{
		portField("LIA Port", ports, &dev.LIA),
		portField("PEM Port", ports, &dev.PEM),
		portField("Stepper Port", ports, &dev.Stepper),
		portField("Pump Port", ports, &dev.Pump),
	}

	return container.NewTabItem("Devices", createForm(state, fields))
}

// portField offers the detected ports and accepts any typed name.
func portField(label string, ports []string, o *link.Options) field {
	e := widget.NewSelectEntry(ports)
	e.SetText(o.Port)
	return field{
		label:  label,
		entry:  &e.Entry,
		object: e,
		apply: func(s string) error {
			o.Port = strings.TrimSpace(s)
			return nil
		},
	}
}

// createScanTab creates the scan configuration tab.
func createScanTab(state *appState) *container.TabItem {
	sc := &state.cfg.Scan
	fields := []field{
		stringField("Calibration File", &sc.Calibration),
		stringField("Output Directory", &sc.OutputDir),
		stringField("File Stub", &sc.Stub),
		durationField("Integration Time", &sc.IntegrationTime),
		durationField("Settle Time", &sc.SettleTime),
		intField("Scans (0=until stopped)", &sc.Count),
		intField("Start (nm)", &sc.Start),
		intField("Stop (nm)", &sc.Stop),
		intField("Wavelength Offset (nm)", &sc.WavelengthOffset),
	}

	plotCheck := widget.NewCheck("", func(on bool) {
		sc.Plot = on
	})
	plotCheck.SetChecked(sc.Plot)

	return container.NewTabItem("Scan", createForm(state, fields, widget.NewFormItem("Plot PNG", plotCheck)))
}

// createStageTab creates the stage motion tab.
func createStageTab(state *appState) *container.TabItem {
	st := &state.cfg.Stage
	fields := []field{
		durationField("Poll Interval", &st.PollInterval),
		int32Field("Backoff (steps)", &st.Backoff),
	}
	return container.NewTabItem("Stage", createForm(state, fields))
}

// createStoreTab creates the run database tab.
func createStoreTab(state *appState) *container.TabItem {
	fields := []field{
		stringField("Database (empty=off)", &state.cfg.Store.Database),
	}
	return container.NewTabItem("Store", createForm(state, fields))
}

// createMockTab creates the simulated rig tab.
func createMockTab(state *appState) *container.TabItem {
	m := &state.cfg.Mock
	fields := []field{
		floatField("Signal (V)", &m.Signal),
		floatField("DC (V)", &m.DC),
		floatField("Noise Level", &m.NoiseLevel),
		int32Field("Stage Speed (steps/ms)", &m.StepsPerMs),
		durationField("Snapshot Latency", &m.Latency),
	}
	return container.NewTabItem("Mock", createForm(state, fields))
}
