// Package pem drives the photoelastic modulator controller.
package pem

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/itohio/sscd/pkg/link"
)

// Ack is the acknowledgement the controller sends after every command.
var Ack = []byte("\n\r*")

// QuarterWave is the retardation setting used for circular dichroism.
const QuarterWave = "0250"

// PEM is a modulator controller on a serial link.
type PEM struct {
	link link.Link
	log  *logrus.Entry
}

// New wraps a link to the controller.
func New(l link.Link, log *logrus.Entry) *PEM {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &PEM{
		link: l,
		log:  log.WithField("device", "pem"),
	}
}

// SetWavelength tunes the modulator to a wavelength code such as "08000".
func (p *PEM) SetWavelength(code string) error {
	return p.command("W:" + code)
}

// EnableRetardation switches retardation on and sets it to a quarter wave.
func (p *PEM) EnableRetardation() error {
	if err := p.command("I:0"); err != nil {
		return err
	}
	return p.command("R:" + QuarterWave)
}

// DisableRetardation switches retardation off.
func (p *PEM) DisableRetardation() error {
	return p.command("I:1")
}

// command flushes stale input, sends one command and validates the
// acknowledgement. A missing or wrong acknowledgement is a ProtocolError;
// nothing is retried.
func (p *PEM) command(cmd string) error {
	frame := []byte(cmd + "\r\n")
	p.log.Debugf("> %q", frame)

	if err := p.link.FlushInput(); err != nil {
		return err
	}
	if err := p.link.Write(frame); err != nil {
		return errors.Wrapf(err, "pem %q", cmd)
	}

	resp, err := p.link.ReadExact(len(Ack))
	if err != nil {
		var te *link.TimeoutError
		if !errors.As(err, &te) {
			return errors.Wrapf(err, "pem %q", cmd)
		}
		resp = te.Partial
		perr := &link.ProtocolError{Device: "pem", Command: frame, Response: resp, Reason: "missing acknowledgement"}
		p.log.WithError(err).Error(perr.Error())
		return perr
	}
	if !bytes.Equal(resp, Ack) {
		perr := &link.ProtocolError{Device: "pem", Command: frame, Response: resp, Reason: "bad acknowledgement"}
		p.log.Error(perr.Error())
		return perr
	}
	return nil
}
