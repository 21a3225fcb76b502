package store

import (
	"database/sql"
	_ "embed"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/itohio/sscd/pkg/sample"
	"github.com/itohio/sscd/pkg/scan"
)

// schema.sql defines one row per scan run and one row per wavelength result.
//
//go:embed schema.sql
var schemaSQL string

// DB records every scan run and its results in SQLite.
type DB struct {
	*sql.DB
	log *logrus.Entry
}

// Run is a recorded scan.
type Run struct {
	ID       string
	Index    int
	Strategy string
	Path     string
	Started  time.Time
	Finished *time.Time // nil for an aborted run
}

// OpenDB opens or creates the database at path.
func OpenDB(path string, log *logrus.Entry) (*DB, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", path)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to initialize database %s", path)
	}

	log = log.WithField("database", path)
	log.Debug("initialized run database schema")
	return &DB{DB: db, log: log}, nil
}

// BeginRun records the start of a run and returns the sink for its results.
func (d *DB) BeginRun(run scan.RunInfo) (*RunWriter, error) {
	_, err := d.Exec(
		`INSERT INTO runs (id, idx, strategy, path, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Index, run.Strategy, run.Path, run.Started.UnixNano(),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to record run %s", run.ID)
	}
	return &RunWriter{db: d, id: run.ID}, nil
}

// Runs lists recorded runs, oldest first.
func (d *DB) Runs() ([]Run, error) {
	rows, err := d.Query(`SELECT id, idx, strategy, path, started_at, finished_at FROM runs ORDER BY started_at, idx`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Index, &r.Strategy, &r.Path, &started, &finished); err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		r.Started = time.Unix(0, started)
		if finished.Valid {
			t := time.Unix(0, finished.Int64)
			r.Finished = &t
		}
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "failed to list runs")
}

// Results returns the results of a run ordered by wavelength.
func (d *DB) Results(runID string) ([]sample.Result, error) {
	rows, err := d.Query(
		`SELECT wavelength, signal, noise, dc, samples, dropped FROM results WHERE run_id = ? ORDER BY wavelength`,
		runID,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read results of run %s", runID)
	}
	defer rows.Close()

	var results []sample.Result
	for rows.Next() {
		var r sample.Result
		if err := rows.Scan(&r.Wavelength, &r.Signal, &r.Noise, &r.DC, &r.Samples, &r.Dropped); err != nil {
			return nil, errors.Wrap(err, "failed to scan result")
		}
		results = append(results, r)
	}
	return results, errors.Wrapf(rows.Err(), "failed to read results of run %s", runID)
}

// RunWriter appends results of one run.
type RunWriter struct {
	db *DB
	id string
}

var (
	_ scan.RunSink  = (*RunWriter)(nil)
	_ scan.Finisher = (*RunWriter)(nil)
)

// Write stores one result.
func (w *RunWriter) Write(r sample.Result) error {
	_, err := w.db.Exec(
		`INSERT INTO results (run_id, wavelength, signal, noise, dc, samples, dropped) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.id, r.Wavelength, r.Signal, r.Noise, r.DC, r.Samples, r.Dropped,
	)
	return errors.Wrapf(err, "failed to store %dnm of run %s", r.Wavelength, w.id)
}

// Close is a no-op: the connection belongs to DB.
func (w *RunWriter) Close() error {
	return nil
}

// Finish stamps the run as complete. Aborted runs keep a NULL finish time.
func (w *RunWriter) Finish(at time.Time) error {
	_, err := w.db.Exec(`UPDATE runs SET finished_at = ? WHERE id = ?`, at.UnixNano(), w.id)
	return errors.Wrapf(err, "failed to finish run %s", w.id)
}
