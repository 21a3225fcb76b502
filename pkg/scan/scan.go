// Package scan runs steady-state CD scans: it walks a resolved plan, collects
// lock-in snapshots at every wavelength and emits one aggregated result per
// wavelength.
package scan

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/itohio/sscd/pkg/lia"
	"github.com/itohio/sscd/pkg/link"
	"github.com/itohio/sscd/pkg/pem"
	"github.com/itohio/sscd/pkg/sample"
	"github.com/itohio/sscd/pkg/stage"
)

const (
	// DefaultIntegrationTime is the snapshot collection window per wavelength.
	DefaultIntegrationTime = time.Second
	// DefaultSettleTime is the pause between tuning and auto-phasing.
	DefaultSettleTime = 500 * time.Millisecond
)

// LockIn is the part of the lock-in amplifier a scan uses.
type LockIn interface {
	AutoPhase() error
	Snapshot() (string, error)
}

// Modulator is the part of the modulator controller a scan uses.
type Modulator interface {
	EnableRetardation() error
	SetWavelength(code string) error
}

// Stage moves the wavelength stage and waits for it to arrive.
type Stage interface {
	Move(ctx context.Context, target int32) error
}

// Sink receives results in scan order.
type Sink interface {
	Write(r sample.Result) error
}

var (
	_ LockIn    = (*lia.LIA)(nil)
	_ Modulator = (*pem.PEM)(nil)
	_ Stage     = (*stage.Stepper)(nil)
)

// Options configures a Scanner. Zero durations select the defaults.
type Options struct {
	IntegrationTime time.Duration
	SettleTime      time.Duration
}

// Scanner drives one rig through scan plans. It owns the devices for the
// duration of Run and must not be shared between concurrent runs.
type Scanner struct {
	lockin    LockIn
	modulator Modulator
	stage     Stage
	log       *logrus.Entry

	integration time.Duration
	settle      time.Duration

	observer func(sample.Result)

	// allow tests to control time
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a scanner over the given devices.
func New(lockin LockIn, modulator Modulator, st Stage, opts Options, log *logrus.Entry) *Scanner {
	if opts.IntegrationTime <= 0 {
		opts.IntegrationTime = DefaultIntegrationTime
	}
	if opts.SettleTime <= 0 {
		opts.SettleTime = DefaultSettleTime
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scanner{
		lockin:      lockin,
		modulator:   modulator,
		stage:       st,
		log:         log.WithField("component", "scan"),
		integration: opts.IntegrationTime,
		settle:      opts.SettleTime,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// OnResult registers a callback invoked with every result after it was
// written to the sink. It runs on the scanning goroutine.
func (s *Scanner) OnResult(fn func(sample.Result)) {
	s.observer = fn
}

// Run executes plan and writes one result per step to sink. Retardation is
// enabled once at the start and left enabled. Any device error aborts the
// run; the stage is parked only after a complete scan.
func (s *Scanner) Run(ctx context.Context, plan *Plan, sink Sink) error {
	if plan == nil || len(plan.Steps) == 0 {
		return errors.New("empty scan plan")
	}

	s.log.WithFields(logrus.Fields{
		"strategy": plan.Strategy,
		"steps":    len(plan.Steps),
		"from":     plan.Steps[0].Wavelength,
		"to":       plan.Steps[len(plan.Steps)-1].Wavelength,
	}).Info("starting scan")

	if err := s.modulator.EnableRetardation(); err != nil {
		return errors.Wrap(err, "enable retardation")
	}

	for _, step := range plan.Steps {
		res, err := s.measure(ctx, step)
		if err != nil {
			return errors.Wrapf(err, "%dnm", step.Wavelength)
		}
		if err := sink.Write(res); err != nil {
			return errors.Wrapf(err, "%dnm: write result", step.Wavelength)
		}
		if s.observer != nil {
			s.observer(res)
		}
	}

	s.log.WithField("position", plan.Park).Debug("parking stage")
	if err := s.stage.Move(ctx, plan.Park); err != nil {
		return errors.Wrap(err, "park stage")
	}

	s.log.Info("scan complete")
	return nil
}

// measure runs Position, SetWavelength, Settle, AutoPhase, Integrate and
// Aggregate for one step.
func (s *Scanner) measure(ctx context.Context, step Step) (sample.Result, error) {
	log := s.log.WithField("wl", step.Wavelength)
	log.Info("beginning collection")

	log.WithField("position", step.Position).Debug("positioning stage")
	if err := s.stage.Move(ctx, step.Position); err != nil {
		return sample.Result{}, err
	}
	if err := s.modulator.SetWavelength(step.PEMCode); err != nil {
		return sample.Result{}, err
	}
	if err := s.sleep(ctx, s.settle); err != nil {
		return sample.Result{}, err
	}
	if err := s.lockin.AutoPhase(); err != nil {
		return sample.Result{}, err
	}

	batch, err := s.integrate(ctx)
	if err != nil {
		return sample.Result{}, err
	}

	res, err := sample.Aggregate(batch)
	res.Wavelength = step.Wavelength
	if res.Dropped > 0 {
		log.WithField("dropped", res.Dropped).Warn("snapshots with zero DC dropped")
	}
	if err != nil {
		return res, err
	}

	log.WithField("samples", res.Samples).Debugf("signal = %.5e, noise = %.5e", res.Signal, res.Noise)
	return res, nil
}

// integrate polls snapshots until the integration window has elapsed. The
// number of snapshots depends on the link speed.
func (s *Scanner) integrate(ctx context.Context) ([]sample.Snapshot, error) {
	var batch []sample.Snapshot
	start := s.now()
	for {
		now := s.now()
		if now.Sub(start) >= s.integration {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := s.lockin.Snapshot()
		if err != nil {
			return nil, err
		}
		snap, err := sample.ParseSnapshot(text)
		if err != nil {
			perr := &link.ProtocolError{Device: "lia", Command: []byte("SNAPD?\n"), Response: []byte(text), Reason: err.Error()}
			s.log.Error(perr.Error())
			return nil, perr
		}
		snap.Timestamp = now
		batch = append(batch, snap)
	}
	return batch, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
