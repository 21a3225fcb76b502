// Package stage drives the wavelength stage stepper controller over its
// binary frame protocol.
package stage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/itohio/sscd/pkg/link"
)

// Stepper is a stepper controller on a serial link.
type Stepper struct {
	link         link.Link
	log          *logrus.Entry
	pollInterval time.Duration
}

// New wraps a link to the controller. pollInterval is the pause between
// position polls while waiting for a move to finish; zero polls back to back.
func New(l link.Link, pollInterval time.Duration, log *logrus.Entry) *Stepper {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Stepper{
		link:         l,
		log:          log.WithField("device", "stepper"),
		pollInterval: pollInterval,
	}
}

// Home sends the controller to its home position. It does not wait for the
// homing run to finish.
func (s *Stepper) Home() error {
	return s.send(CmdInit, 0)
}

// Position queries the current position.
func (s *Stepper) Position() (Reading, error) {
	if err := s.link.FlushInput(); err != nil {
		return Reading{}, err
	}
	if err := s.send(CmdGetPos, 0); err != nil {
		return Reading{}, err
	}

	resp, err := s.link.ReadExact(FrameSize)
	if err != nil {
		return Reading{}, errors.Wrap(err, "stepper position")
	}
	r, err := Decode(resp)
	if err != nil {
		return Reading{}, errors.Wrap(err, "stepper position")
	}
	s.log.Debugf("< %v (%v)", resp, r)
	return r, nil
}

// Move commands an absolute move and blocks until the stage reports target.
// Negative targets are rejected: their replies decode as Moving and could
// never be confirmed.
func (s *Stepper) Move(ctx context.Context, target int32) error {
	if target < 0 {
		return errors.Errorf("move to %d: negative positions cannot be confirmed", target)
	}
	s.log.WithField("target", target).Debug("moving")
	if err := s.send(CmdMove, target); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "move to %d", target)
		}

		r, err := s.Position()
		if err != nil {
			return err
		}
		if !r.Moving && r.Position == target {
			break
		}
		s.log.Debugf("still moving (%v / %d)", r, target)

		if s.pollInterval > 0 {
			select {
			case <-ctx.Done():
				return errors.Wrapf(ctx.Err(), "move to %d", target)
			case <-time.After(s.pollInterval):
			}
		}
	}

	s.log.WithField("target", target).Debug("done moving")
	return nil
}

func (s *Stepper) send(cmd byte, payload int32) error {
	frame := Encode(Device, cmd, payload)
	s.log.Debugf("> %v", frame)
	if err := s.link.Write(frame); err != nil {
		return errors.Wrapf(err, "stepper command %d", cmd)
	}
	return nil
}
