// Package lia drives the lock-in amplifier over its ASCII command set.
package lia

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/itohio/sscd/pkg/link"
)

// Identity is the identification string of the supported amplifier.
const Identity = "Stanford_Research_Systems,SR865A,003263,V1.47"

// MaxChannels is the number of data slots the amplifier exposes to SNAPD?.
const MaxChannels = 4

const idnLength = len(Identity)

// Output channels.
const (
	ChannelX   = "X"
	ChannelXN  = "XN"
	ChannelR   = "R"
	ChannelIN3 = "IN3"
)

// setup is sent after the data slots are assigned: external reference,
// floating ground, voltage input, AC coupling, input A, 100ms time constant,
// 6dB/oct slope.
var setup = []string{
	"RSRC EXT",
	"IGND FLO",
	"IVMD VOLT",
	"ICPL AC",
	"ISRC A",
	"OFLT 10",
	"OFSL 0",
}

// LIA is a lock-in amplifier on a serial link.
type LIA struct {
	link link.Link
	log  *logrus.Entry
}

// New configures the amplifier: channels[i] is assigned to data slot i+1,
// followed by the fixed input setup. Nothing is read back.
func New(l link.Link, channels []string, log *logrus.Entry) (*LIA, error) {
	if len(channels) > MaxChannels {
		return nil, errors.Errorf("lock-in has %d data slots, got %d channels", MaxChannels, len(channels))
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	d := &LIA{
		link: l,
		log:  log.WithField("device", "lia"),
	}

	for i, ch := range channels {
		if err := d.send(fmt.Sprintf("CDSP DAT%d,%s", i+1, ch)); err != nil {
			return nil, err
		}
	}
	for _, cmd := range setup {
		if err := d.send(cmd); err != nil {
			return nil, err
		}
	}

	d.log.WithField("channels", channels).Info("lock-in configured")
	return d, nil
}

// Identify returns the identification text reported by the amplifier.
func (d *LIA) Identify() (string, error) {
	if err := d.link.FlushInput(); err != nil {
		return "", err
	}
	if err := d.send("*IDN?"); err != nil {
		return "", err
	}
	resp, err := d.link.ReadUntil('\n', idnLength)
	if err != nil {
		return "", errors.Wrap(err, "lia identification")
	}
	return strings.TrimRight(string(resp), "\r\n"), nil
}

// IsConnected reports whether the amplifier answers with the expected
// identity. Transport failures count as not connected.
func (d *LIA) IsConnected() bool {
	idn, err := d.Identify()
	if err != nil {
		d.log.WithError(err).Debug("identification failed")
		return false
	}
	if idn != Identity {
		d.log.WithField("idn", idn).Warn("unexpected lock-in identity")
		return false
	}
	return true
}

// AutoPhase asks the amplifier to zero the reference phase.
func (d *LIA) AutoPhase() error {
	return d.send("APHS")
}

// AC reads channel X.
func (d *LIA) AC() (string, error) {
	return d.output(ChannelX)
}

// Noise reads channel XN.
func (d *LIA) Noise() (string, error) {
	return d.output(ChannelXN)
}

// SignalMag reads channel R.
func (d *LIA) SignalMag() (string, error) {
	return d.output(ChannelR)
}

// DC reads auxiliary input 3.
func (d *LIA) DC() (string, error) {
	return d.output(ChannelIN3)
}

// Snapshot reads the four data slots at one instant. The reply is the raw
// comma-separated text terminated by a carriage return.
func (d *LIA) Snapshot() (string, error) {
	if err := d.link.FlushInput(); err != nil {
		return "", err
	}
	if err := d.send("SNAPD?"); err != nil {
		return "", err
	}
	resp, err := d.link.ReadUntil('\r', 0)
	if err != nil {
		return "", errors.Wrap(err, "lia snapshot")
	}
	return string(resp), nil
}

func (d *LIA) output(ch string) (string, error) {
	if err := d.link.FlushInput(); err != nil {
		return "", err
	}
	if err := d.send("OUTP? " + ch); err != nil {
		return "", err
	}
	resp, err := d.link.ReadUntil('\n', 0)
	if err != nil {
		return "", errors.Wrapf(err, "lia output %s", ch)
	}
	return string(resp), nil
}

func (d *LIA) send(cmd string) error {
	d.log.Debugf("> %s", cmd)
	if err := d.link.Write([]byte(cmd + "\n")); err != nil {
		return errors.Wrapf(err, "lia %q", cmd)
	}
	return nil
}
