// Package rig opens the instruments of the spectrometer, either over their
// serial ports or as simulated devices.
package rig

import (
	"math"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/itohio/sscd/pkg/config"
	"github.com/itohio/sscd/pkg/lia"
	"github.com/itohio/sscd/pkg/link"
	"github.com/itohio/sscd/pkg/pem"
	"github.com/itohio/sscd/pkg/pump"
	"github.com/itohio/sscd/pkg/scan"
	"github.com/itohio/sscd/pkg/stage"
)

// Devices selects which instruments to open.
type Devices uint8

const (
	LIA Devices = 1 << iota
	PEM
	Stage
	Pump

	// Scan is the set of instruments a scan needs.
	Scan = LIA | PEM | Stage
)

// ErrNoPump is returned when the pump is requested but no port is configured.
var ErrNoPump = errors.New("pump laser port is not configured")

// Rig holds the opened instruments. Devices that were not requested are nil.
type Rig struct {
	LIA   *lia.LIA
	PEM   *pem.PEM
	Stage *stage.Stepper
	Pump  *pump.Pump

	// Sim is set for a simulated rig.
	Sim *Sim

	cfg   *config.Config
	log   *logrus.Entry
	links []link.Link
}

// Sim exposes the simulated instruments of a mock rig.
type Sim struct {
	LIA   *lia.Mock
	PEM   *pem.Mock
	Stage *stage.Mock
	Pump  *pump.Mock
}

// Open opens the requested instruments. With mock set, every instrument is
// simulated according to cfg.Mock. On error every link opened so far is
// closed again.
func Open(cfg *config.Config, want Devices, mock bool, log *logrus.Entry) (*Rig, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	r := &Rig{cfg: cfg, log: log}
	if mock {
		r.Sim = &Sim{}
	}

	if err := r.open(want); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Rig) open(want Devices) error {
	dev := r.cfg.Devices

	if want&LIA != 0 {
		l, err := r.link("lia", dev.LIA, func() link.Port {
			r.Sim.LIA = lia.NewMock(&r.cfg.Mock)
			return r.Sim.LIA.Port()
		})
		if err != nil {
			return err
		}
		if r.LIA, err = lia.New(l, r.cfg.LIA.Channels, r.log); err != nil {
			return err
		}
	}

	if want&PEM != 0 {
		l, err := r.link("pem", dev.PEM, func() link.Port {
			r.Sim.PEM = pem.NewMock()
			return r.Sim.PEM.Port()
		})
		if err != nil {
			return err
		}
		r.PEM = pem.New(l, r.log)
	}

	if want&Stage != 0 {
		l, err := r.link("stepper", dev.Stepper, func() link.Port {
			r.Sim.Stage = stage.NewMock(&r.cfg.Mock)
			return r.Sim.Stage.Port()
		})
		if err != nil {
			return err
		}
		r.Stage = stage.New(l, r.cfg.Stage.PollInterval, r.log)
	}

	if want&Pump != 0 {
		if r.Sim == nil && dev.Pump.Port == "" {
			return ErrNoPump
		}
		l, err := r.link("pump", dev.Pump, func() link.Port {
			r.Sim.Pump = pump.NewMock()
			return r.Sim.Pump.Port()
		})
		if err != nil {
			return err
		}
		r.Pump = pump.New(l, r.log)
	}

	if r.Sim != nil && r.Sim.LIA != nil && r.Sim.PEM != nil {
		r.Sim.LIA.Source = r.Sim.band
	}
	return nil
}

// link opens a serial link, or wraps the simulated port when mocking.
func (r *Rig) link(name string, opts link.Options, sim func() link.Port) (link.Link, error) {
	if r.Sim != nil {
		l := link.New("mock-"+name, sim(), opts.Timeout, r.log.WithField("device", name))
		r.links = append(r.links, l)
		return l, nil
	}

	l, err := link.Open(opts, r.log.WithField("device", name))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", name)
	}
	r.links = append(r.links, l)
	return l, nil
}

// Scanner creates a scanner over the rig's instruments.
func (r *Rig) Scanner(opts scan.Options) (*scan.Scanner, error) {
	if r.LIA == nil || r.PEM == nil || r.Stage == nil {
		return nil, errors.New("scan needs the lock-in, the modulator and the stage")
	}
	return scan.New(r.LIA, r.PEM, r.Stage, opts, r.log), nil
}

// Close closes every open link and returns the first error.
func (r *Rig) Close() error {
	var first error
	for i := len(r.links) - 1; i >= 0; i-- {
		if err := r.links[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	r.links = nil
	return first
}

// Simulated sample: a CD couplet made of a positive band at 820nm and a
// negative one at 805nm.
const (
	bandPositive = 820.0
	bandNegative = 805.0
	bandWidth    = 6.0
)

// band returns the relative CD signal at the wavelength the modulator is
// tuned to.
func (s *Sim) band() float64 {
	code, err := strconv.Atoi(s.PEM.Wavelength())
	if err != nil {
		return 0
	}
	return Band(float64(code) / 10)
}

// Band is the simulated CD spectrum at wl nanometres.
func Band(wl float64) float64 {
	g := func(center float64) float64 {
		d := (wl - center) / bandWidth
		return math.Exp(-d * d / 2)
	}
	return g(bandPositive) - g(bandNegative)
}
