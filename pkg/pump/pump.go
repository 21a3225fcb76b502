// Package pump drives the pump laser controller.
package pump

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/itohio/sscd/pkg/link"
)

// MaxPower is the upper bound of the laser output in watts.
const MaxPower = 5.0

// Pump is a pump laser controller on a serial link.
type Pump struct {
	link link.Link
	log  *logrus.Entry
}

// New wraps a link to the controller.
func New(l link.Link, log *logrus.Entry) *Pump {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pump{
		link: l,
		log:  log.WithField("device", "pump"),
	}
}

// On powers the diode.
func (p *Pump) On() error {
	return p.send("ON")
}

// Off powers the diode down.
func (p *Pump) Off() error {
	return p.send("OFF")
}

// OpenShutter opens the output shutter.
func (p *Pump) OpenShutter() error {
	return p.send("SHT:1")
}

// CloseShutter closes the output shutter.
func (p *Pump) CloseShutter() error {
	return p.send("SHT:0")
}

// SetPower sets the output power in watts.
func (p *Pump) SetPower(watts float64) error {
	if watts < 0 || watts > MaxPower {
		return errors.Errorf("pump power %g W outside 0..%g W", watts, MaxPower)
	}
	return p.send("P:" + strconv.FormatFloat(watts, 'f', -1, 64))
}

// DiodeIsOn reports whether the diode is emitting.
func (p *Pump) DiodeIsOn() (bool, error) {
	return p.queryBool("?D")
}

// ShutterIsOpen reports whether the shutter is open.
func (p *Pump) ShutterIsOpen() (bool, error) {
	return p.queryBool("?SHT")
}

// CurrentPower reads the output power in watts.
func (p *Pump) CurrentPower() (float64, error) {
	cmd, err := p.query("?P")
	if err != nil {
		return 0, err
	}

	resp, err := p.link.ReadUntil('\n', 0)
	if err != nil {
		return 0, errors.Wrap(err, "pump power")
	}

	text := strings.TrimSpace(string(resp))
	watts, err := strconv.ParseFloat(text, 64)
	if err != nil || watts < 0 || watts > MaxPower {
		return 0, p.violation(cmd, resp, "expected power between 0 and 5 W")
	}
	p.log.Debugf("output power %.3f W", watts)
	return watts, nil
}

func (p *Pump) queryBool(q string) (bool, error) {
	cmd, err := p.query(q)
	if err != nil {
		return false, err
	}

	resp, err := p.link.ReadExact(2)
	if err != nil {
		return false, errors.Wrapf(err, "pump %q", q)
	}

	switch string(resp) {
	case "1\n":
		return true, nil
	case "0\n":
		return false, nil
	}
	return false, p.violation(cmd, resp, `expected "1\n" or "0\n"`)
}

// query flushes stale input and sends q, returning the frame sent.
func (p *Pump) query(q string) ([]byte, error) {
	if err := p.link.FlushInput(); err != nil {
		return nil, err
	}
	frame := []byte(q + "\n")
	p.log.Debugf("> %q", frame)
	if err := p.link.Write(frame); err != nil {
		return nil, errors.Wrapf(err, "pump %q", q)
	}
	return frame, nil
}

func (p *Pump) send(cmd string) error {
	frame := []byte(cmd + "\n")
	p.log.Debugf("> %q", frame)
	if err := p.link.Write(frame); err != nil {
		return errors.Wrapf(err, "pump %q", cmd)
	}
	return nil
}

func (p *Pump) violation(cmd, resp []byte, reason string) error {
	perr := &link.ProtocolError{Device: "pump", Command: cmd, Response: resp, Reason: reason}
	p.log.Error(perr.Error())
	return perr
}
