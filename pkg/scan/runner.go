package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// RunInfo identifies one scan of a series.
type RunInfo struct {
	ID       string
	Index    int
	Path     string // Result file of this scan
	Strategy string
	Started  time.Time
}

// RunSink is a Sink that is closed once its scan finishes.
type RunSink interface {
	Sink
	Close() error
}

// Finisher is implemented by sinks that record whether their scan completed.
// Finish is called after the stage has parked, and only then.
type Finisher interface {
	Finish(at time.Time) error
}

// SinkFactory opens the sink for one scan.
type SinkFactory func(run RunInfo) (RunSink, error)

// Runner repeats a plan, writing each scan to its own numbered file.
type Runner struct {
	scanner *Scanner
	dir     string
	stub    string
	count   int
	newSink SinkFactory
	log     *logrus.Entry
}

// NewRunner creates a runner writing <stub>_<index>.csv files into dir. A
// count of zero repeats until ctx is cancelled.
func NewRunner(scanner *Scanner, dir, stub string, count int, newSink SinkFactory, log *logrus.Entry) *Runner {
	if stub == "" {
		stub = "scan"
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Runner{
		scanner: scanner,
		dir:     dir,
		stub:    stub,
		count:   count,
		newSink: newSink,
		log:     log.WithField("component", "runner"),
	}
}

// Path returns the result file of scan i.
func (r *Runner) Path(i int) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s_%03d.csv", r.stub, i))
}

// Run executes the series. It stops at the first failed scan.
func (r *Runner) Run(ctx context.Context, plan *Plan) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create output directory %s", r.dir)
	}

	for i := 0; r.count == 0 || i < r.count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		run := RunInfo{
			ID:       uuid.NewString(),
			Index:    i,
			Path:     r.Path(i),
			Strategy: plan.Strategy,
			Started:  time.Now(),
		}
		r.log.WithFields(logrus.Fields{
			"run":  run.ID,
			"path": run.Path,
		}).Infof("starting iteration %d", i+1)

		if err := r.once(ctx, plan, run); err != nil {
			return errors.Wrapf(err, "scan %d", i+1)
		}
	}
	return nil
}

func (r *Runner) once(ctx context.Context, plan *Plan, run RunInfo) (err error) {
	sink, err := r.newSink(run)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := r.scanner.Run(ctx, plan, sink); err != nil {
		return err
	}
	if f, ok := sink.(Finisher); ok {
		return f.Finish(time.Now())
	}
	return nil
}
