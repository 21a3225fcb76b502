package gui

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/widget"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/sscd/pkg/config"
	"github.com/itohio/sscd/pkg/link"
	"github.com/itohio/sscd/pkg/pump"
	"github.com/itohio/sscd/pkg/scan"
)

func TestRunLabel(t *testing.T) {
	assert.Equal(t, "scan 1/3", runLabel(scan.RunInfo{Index: 0}, 3))
	assert.Equal(t, "scan 5", runLabel(scan.RunInfo{Index: 4}, 0))
}

func TestFinishedLabel(t *testing.T) {
	assert.Equal(t, "done", finishedLabel(nil))
	assert.Equal(t, "stopped", finishedLabel(pkgerrors.Wrap(context.Canceled, "scan 2")))
	assert.Equal(t, "failed", finishedLabel(errors.New("boom")))
}

func TestFields(t *testing.T) {
	test.NewTempApp(t)

	var (
		s  = "old"
		n  = 1
		n2 = int32(2)
		f  = 0.5
		d  = time.Second
	)
	fields := []field{
		stringField("s", &s),
		intField("n", &n),
		int32Field("n2", &n2),
		floatField("f", &f),
		durationField("d", &d),
	}

	assert.Equal(t, "old", fields[0].entry.Text)
	assert.Equal(t, "1", fields[1].entry.Text)
	assert.Equal(t, "0.5", fields[3].entry.Text)
	assert.Equal(t, "1s", fields[4].entry.Text)

	fields[0].entry.SetText(" new ")
	fields[1].entry.SetText("42")
	fields[2].entry.SetText("-2000")
	fields[3].entry.SetText("1e-3")
	fields[4].entry.SetText("250ms")
	require.NoError(t, applyFields(fields))

	assert.Equal(t, "new", s)
	assert.Equal(t, 42, n)
	assert.Equal(t, int32(-2000), n2)
	assert.Equal(t, 1e-3, f)
	assert.Equal(t, 250*time.Millisecond, d)
}

func TestFields_Invalid(t *testing.T) {
	test.NewTempApp(t)

	tests := []struct {
		name string
		make func() field
	}{
		{"int", func() field { v := 0; return intField("n", &v) }},
		{"int32", func() field { v := int32(0); return int32Field("n", &v) }},
		{"float", func() field { v := 0.0; return floatField("f", &v) }},
		{"duration", func() field { v := time.Duration(0); return durationField("d", &v) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.make()
			f.entry.SetText("99999999999x")
			assert.Error(t, applyFields([]field{f}))
		})
	}
}

func TestFields_StopAtFirstError(t *testing.T) {
	test.NewTempApp(t)

	bad, good := 1, 2
	fields := []field{intField("bad", &bad), intField("good", &good)}
	fields[0].entry.SetText("x")
	fields[1].entry.SetText("3")

	assert.Error(t, applyFields(fields))
	assert.Equal(t, 2, good)
}

func TestPortField(t *testing.T) {
	test.NewTempApp(t)

	opts := link.Options{Port: "COM4"}
	f := portField("LIA Port", []string{"COM3", "COM4"}, &opts)
	assert.Equal(t, "COM4", f.entry.Text)
	assert.IsType(t, &widget.SelectEntry{}, f.object)

	f.entry.SetText("/dev/ttyUSB0")
	require.NoError(t, applyFields([]field{f}))
	assert.Equal(t, "/dev/ttyUSB0", opts.Port)
}

func TestSaveConfig(t *testing.T) {
	test.NewTempApp(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	state := &appState{
		cfg:     config.Default(),
		cfgPath: path,
		log:     logrus.NewEntry(logrus.StandardLogger()),
	}
	state.cfg.Scan.Strategy = config.StrategyComputed
	state.cfg.Scan.Start = 801

	saveConfig(state)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 801, loaded.Scan.Start)
}

func TestSetPump(t *testing.T) {
	m := pump.NewMock()
	p := pump.New(link.New("pump", m.Port(), time.Second, nil), nil)

	require.NoError(t, setPump(p, pumpDiode, true))
	on, err := p.DiodeIsOn()
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, setPump(p, pumpShutter, true))
	open, err := p.ShutterIsOpen()
	require.NoError(t, err)
	assert.True(t, open)

	require.NoError(t, setPump(p, pumpShutter, false))
	open, err = p.ShutterIsOpen()
	require.NoError(t, err)
	assert.False(t, open)

	require.NoError(t, setPump(p, pumpDiode, false))
	on, err = p.DiodeIsOn()
	require.NoError(t, err)
	assert.False(t, on)
}

func TestHasPump(t *testing.T) {
	s := &appState{cfg: config.Default()}
	assert.False(t, s.hasPump())

	s.mock = true
	assert.True(t, s.hasPump())

	s.mock = false
	s.cfg.Devices.Pump.Port = "COM7"
	assert.True(t, s.hasPump())
}
