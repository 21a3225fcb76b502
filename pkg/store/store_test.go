package store

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/sscd/pkg/sample"
	"github.com/itohio/sscd/pkg/scan"
)

var results = []sample.Result{
	{Wavelength: 795, Signal: 1.25e-3, Noise: 2e-6, DC: 0.5, Samples: 40},
	{Wavelength: 796, Signal: -3.5e-4, Noise: 1.5e-6, DC: 0.52, Samples: 38, Dropped: 2},
}

func TestCSV_Format(t *testing.T) {
	var buf bytes.Buffer
	c, err := NewCSV(&buf)
	require.NoError(t, err)

	for _, r := range results {
		require.NoError(t, c.Write(r))
	}
	require.NoError(t, c.Close())

	assert.Equal(t, "wl,signal,noise,dc\n795,0.00125,2e-06,0.5\n796,-0.00035,1.5e-06,0.52\n", buf.String())
}

func TestCSV_HeaderOnlyWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	c, err := NewCSV(&buf)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.Equal(t, "wl,signal,noise,dc\n", buf.String())
}

func TestCSV_FileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan_000.csv")
	c, err := CreateCSV(path)
	require.NoError(t, err)
	for _, r := range results {
		require.NoError(t, c.Write(r))
	}

	// rows are on disk before Close
	partial, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Len(t, partial, 2)

	require.NoError(t, c.Close())

	got, err := LoadCSV(path)
	require.NoError(t, err)
	want := []sample.Result{
		{Wavelength: 795, Signal: 1.25e-3, Noise: 2e-6, DC: 0.5},
		{Wavelength: 796, Signal: -3.5e-4, Noise: 1.5e-6, DC: 0.52},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"headered", "wl,signal,noise,dc\n800,1,0,0.5\n", 1, false},
		{"headerless", "800,1,0,0.5\n801,1,0,0.5\n", 2, false},
		{"empty", "", 0, false},
		{"bad wavelength", "wl,signal,noise,dc\nx,1,0,0.5\n", 0, true},
		{"bad signal", "800,one,0,0.5\n", 0, true},
		{"short row", "800,1,0\n", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadCSV(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestCreateCSV_BadPath(t *testing.T) {
	_, err := CreateCSV(filepath.Join(t.TempDir(), "missing", "scan.csv"))
	assert.Error(t, err)
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "runs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDB_RunLifecycle(t *testing.T) {
	db := openTestDB(t)
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	w, err := db.BeginRun(scan.RunInfo{ID: "run-a", Index: 0, Path: "data/scan_000.csv", Strategy: "interpolated", Started: started})
	require.NoError(t, err)
	for _, r := range results {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Finish(started.Add(time.Minute)))
	require.NoError(t, w.Close())

	aborted, err := db.BeginRun(scan.RunInfo{ID: "run-b", Index: 1, Path: "data/scan_001.csv", Strategy: "interpolated", Started: started.Add(2 * time.Minute)})
	require.NoError(t, err)
	require.NoError(t, aborted.Write(results[0]))
	require.NoError(t, aborted.Close())

	runs, err := db.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].ID)
	assert.True(t, runs[0].Started.Equal(started))
	require.NotNil(t, runs[0].Finished)
	assert.True(t, runs[0].Finished.Equal(started.Add(time.Minute)))
	assert.Equal(t, "run-b", runs[1].ID)
	assert.Nil(t, runs[1].Finished)

	got, err := db.Results("run-a")
	require.NoError(t, err)
	if diff := cmp.Diff(results, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	got, err = db.Results("run-b")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDB_DuplicateWavelength(t *testing.T) {
	db := openTestDB(t)
	w, err := db.BeginRun(scan.RunInfo{ID: "run-a", Strategy: "table", Started: time.Now()})
	require.NoError(t, err)

	require.NoError(t, w.Write(results[0]))
	assert.Error(t, w.Write(results[0]))
}

type fakeSink struct {
	writes   int
	finished bool
	closed   bool
	err      error
}

func (f *fakeSink) Write(sample.Result) error { f.writes++; return f.err }
func (f *fakeSink) Close() error              { f.closed = true; return f.err }

type finishingSink struct{ fakeSink }

func (f *finishingSink) Finish(time.Time) error { f.finished = true; return nil }

func TestMulti(t *testing.T) {
	a := &fakeSink{}
	b := &finishingSink{}
	m := Multi{a, b}

	require.NoError(t, m.Write(results[0]))
	require.NoError(t, m.Finish(time.Now()))
	require.NoError(t, m.Close())

	assert.Equal(t, 1, a.writes)
	assert.Equal(t, 1, b.writes)
	assert.True(t, b.finished)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestMulti_Errors(t *testing.T) {
	boom := errors.New("boom")
	a := &fakeSink{err: boom}
	b := &fakeSink{}
	m := Multi{a, b}

	assert.ErrorIs(t, m.Write(results[0]), boom)
	assert.Zero(t, b.writes)

	assert.ErrorIs(t, m.Close(), boom)
	assert.True(t, b.closed)
}
