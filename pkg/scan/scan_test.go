package scan

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/sscd/pkg/calibration"
	"github.com/itohio/sscd/pkg/config"
	"github.com/itohio/sscd/pkg/lia"
	"github.com/itohio/sscd/pkg/link"
	"github.com/itohio/sscd/pkg/pem"
	"github.com/itohio/sscd/pkg/sample"
	"github.com/itohio/sscd/pkg/stage"
)

// rig records every device call in order.
type rig struct {
	events   []string
	snapshot string
	wlErr    map[string]error
}

func (r *rig) AutoPhase() error {
	r.events = append(r.events, "aphs")
	return nil
}

func (r *rig) Snapshot() (string, error) {
	r.events = append(r.events, "snap")
	return r.snapshot, nil
}

func (r *rig) EnableRetardation() error {
	r.events = append(r.events, "retardation")
	return nil
}

func (r *rig) SetWavelength(code string) error {
	r.events = append(r.events, "wl "+code)
	return r.wlErr[code]
}

func (r *rig) Move(_ context.Context, target int32) error {
	r.events = append(r.events, fmt.Sprintf("move %d", target))
	return nil
}

type collector struct {
	results []sample.Result
	closed  bool
}

func (c *collector) Write(r sample.Result) error {
	c.results = append(c.results, r)
	return nil
}

func (c *collector) Close() error {
	c.closed = true
	return nil
}

// newTestScanner returns a scanner whose clock advances 100ms per reading and
// whose settle pauses only record themselves.
func newTestScanner(r *rig) *Scanner {
	s := New(r, r, r, Options{IntegrationTime: time.Second}, nil)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return t0.Add(time.Duration(tick) * 100 * time.Millisecond)
	}
	s.sleep = func(ctx context.Context, d time.Duration) error {
		r.events = append(r.events, "settle "+d.String())
		return ctx.Err()
	}
	return s
}

func testTable(t *testing.T) *calibration.Table {
	t.Helper()
	tbl, err := calibration.New([]calibration.Entry{
		{Wavelength: 800, PEMCode: "08000", Position: 100000},
		{Wavelength: 810, PEMCode: "08100", Position: 105000},
		{Wavelength: 820, PEMCode: "08200", Position: 110000},
	})
	require.NoError(t, err)
	return tbl
}

func stepEvents(pos int32, code string, snaps int) []string {
	ev := []string{fmt.Sprintf("move %d", pos), "wl " + code, "settle 500ms", "aphs"}
	for range snaps {
		ev = append(ev, "snap")
	}
	return ev
}

func TestRun_TablePlan(t *testing.T) {
	r := &rig{snapshot: "1e-3,1.1e-3,2e-6,0.5\r"}
	s := newTestScanner(r)
	sink := &collector{}

	require.NoError(t, s.Run(context.Background(), TablePlan(testTable(t), 2000), sink))

	want := []string{"retardation"}
	want = append(want, stepEvents(100000, "08000", 9)...)
	want = append(want, stepEvents(105000, "08100", 9)...)
	want = append(want, stepEvents(110000, "08200", 9)...)
	want = append(want, "move 98000")
	assert.Equal(t, want, r.events)

	wantResults := []sample.Result{
		{Wavelength: 800, Signal: 1e-3, Noise: 0, DC: 0.5, Samples: 9},
		{Wavelength: 810, Signal: 1e-3, Noise: 0, DC: 0.5, Samples: 9},
		{Wavelength: 820, Signal: 1e-3, Noise: 0, DC: 0.5, Samples: 9},
	}
	if diff := cmp.Diff(wantResults, sink.results, cmpopts.EquateApprox(0, 1e-15)); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_Observer(t *testing.T) {
	r := &rig{snapshot: "1,1,0,1\r"}
	s := newTestScanner(r)
	var seen []int
	s.OnResult(func(res sample.Result) { seen = append(seen, res.Wavelength) })

	plan, err := ComputedPlan(795, 797, 2000)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background(), plan, &collector{}))
	assert.Equal(t, []int{795, 796, 797}, seen)
}

func TestRun_ModulatorErrorAbortsRun(t *testing.T) {
	perr := &link.ProtocolError{Device: "pem", Command: []byte("W:08100\r\n"), Response: []byte("??"), Reason: "bad acknowledgement"}
	r := &rig{snapshot: "1,1,0,1\r", wlErr: map[string]error{"08100": perr}}
	s := newTestScanner(r)
	sink := &collector{}

	err := s.Run(context.Background(), TablePlan(testTable(t), 2000), sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, link.ErrProtocol)
	assert.Contains(t, err.Error(), "810nm")

	assert.Len(t, sink.results, 1)
	assert.Equal(t, "wl 08100", r.events[len(r.events)-1])
	assert.NotContains(t, r.events, "move 98000")
}

func TestRun_MalformedSnapshot(t *testing.T) {
	r := &rig{snapshot: "1,1,1\r"}
	s := newTestScanner(r)

	err := s.Run(context.Background(), TablePlan(testTable(t), 2000), &collector{})
	assert.ErrorIs(t, err, link.ErrProtocol)
}

func TestRun_ZeroDCBatch(t *testing.T) {
	r := &rig{snapshot: "1,1,0,0\r"}
	s := newTestScanner(r)

	err := s.Run(context.Background(), TablePlan(testTable(t), 2000), &collector{})
	assert.ErrorIs(t, err, sample.ErrEmptyBatch)
}

func TestRun_Cancelled(t *testing.T) {
	r := &rig{snapshot: "1,1,0,1\r"}
	s := newTestScanner(r)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, TablePlan(testTable(t), 2000), &collector{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, r.events, "aphs")
}

func TestRun_EmptyPlan(t *testing.T) {
	s := newTestScanner(&rig{})
	assert.Error(t, s.Run(context.Background(), &Plan{}, &collector{}))
	assert.Error(t, s.Run(context.Background(), nil, &collector{}))
}

func TestRun_SimulatedRig(t *testing.T) {
	mock := &config.MockConfig{Signal: 1e-3, DC: 0.5, StepsPerMs: 100000}

	liaMock := lia.NewMock(mock)
	lockin, err := lia.New(link.New("lia", liaMock.Port(), time.Second, nil), []string{"X", "R", "XN", "IN3"}, nil)
	require.NoError(t, err)

	pemMock := pem.NewMock()
	modulator := pem.New(link.New("pem", pemMock.Port(), time.Second, nil), nil)

	stageMock := stage.NewMock(mock)
	stepper := stage.New(link.New("stepper", stageMock.Port(), time.Second, nil), 0, nil)

	s := New(lockin, modulator, stepper, Options{IntegrationTime: 20 * time.Millisecond, SettleTime: time.Millisecond}, nil)
	plan, err := ComputedPlan(795, 797, 2000)
	require.NoError(t, err)

	sink := &collector{}
	require.NoError(t, s.Run(context.Background(), plan, sink))

	require.Len(t, sink.results, 3)
	for i, res := range sink.results {
		assert.Equal(t, 795+i, res.Wavelength)
		assert.InDelta(t, 1e-3, res.Signal, 1e-9)
		assert.InDelta(t, 0.5, res.DC, 1e-9)
		assert.Positive(t, res.Samples)
	}

	assert.Equal(t, "07970", pemMock.Wavelength())
	assert.Equal(t, 3, liaMock.AutoPhases())
	assert.Equal(t, calibration.ComputePosition(795)-2000, stageMock.Position())
	ret, enabled := pemMock.Retardation()
	assert.Equal(t, pem.QuarterWave, ret)
	assert.True(t, enabled)
}

func TestSleepCtx(t *testing.T) {
	require.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.Is(sleepCtx(ctx, time.Hour), context.Canceled))
}
