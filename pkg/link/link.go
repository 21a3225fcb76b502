package link

import (
	"io"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// Link is a byte-oriented duplex channel to a single instrument.
type Link interface {
	Name() string
	Write(p []byte) error
	ReadExact(n int) ([]byte, error)
	ReadUntil(delim byte, max int) ([]byte, error)
	FlushInput() error
	Close() error
}

// Port is the subset of serial.Port a Link needs. Tests and simulated
// instruments substitute MockPort.
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
}

var (
	_ Link = (*Serial)(nil)
	_ Port = (serial.Port)(nil)
)

// allow tests to override the real port opener
var openPort = func(name string, mode *serial.Mode) (Port, error) {
	return serial.Open(name, mode)
}

// Serial is a Link over a serial port with a fixed read timeout.
type Serial struct {
	name    string
	timeout time.Duration
	log     *logrus.Entry

	mu     sync.Mutex
	port   Port
	closed bool
}

// Open opens the serial port described by opts.
func Open(opts Options, log *logrus.Entry) (*Serial, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	mode, err := opts.Mode()
	if err != nil {
		return nil, err
	}

	port, err := openPort(opts.Port, mode)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open serial port %s", opts.Port)
	}

	s := New(opts.Port, port, opts.Timeout, log)
	s.log.WithFields(logrus.Fields{
		"baud":   opts.BaudRate,
		"parity": opts.Parity,
	}).Info("opened serial port")
	return s, nil
}

// New wraps an already open port. A zero timeout selects DefaultTimeout.
func New(name string, port Port, timeout time.Duration, log *logrus.Entry) *Serial {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Serial{
		name:    name,
		timeout: timeout,
		log:     log.WithField("port", name),
		port:    port,
	}
}

// Name returns the port name.
func (s *Serial) Name() string {
	return s.name
}

// Write sends all of p.
func (s *Serial) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.log.Tracef("write %q", p)
	for len(p) > 0 {
		n, err := s.port.Write(p)
		if err != nil {
			return pkgerrors.Wrapf(err, "failed to write to %s", s.name)
		}
		p = p[n:]
	}
	return nil
}

// ReadExact reads exactly n bytes or fails with a TimeoutError.
func (s *Serial) ReadExact(n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	buf := make([]byte, n)
	got := 0
	deadline := time.Now().Add(s.timeout)
	for got < n {
		k, err := s.read(buf[got:], deadline)
		if err != nil {
			return nil, err
		}
		if k == 0 {
			return nil, &TimeoutError{Port: s.name, Op: "read", Partial: buf[:got]}
		}
		got += k
	}

	s.log.Tracef("read %q", buf)
	return buf, nil
}

// ReadUntil reads until delim has been received (and includes it in the
// result) or max bytes have been read. max <= 0 means no limit.
func (s *Serial) ReadUntil(delim byte, max int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	var out []byte
	one := make([]byte, 1)
	deadline := time.Now().Add(s.timeout)
	for max <= 0 || len(out) < max {
		k, err := s.read(one, deadline)
		if err != nil {
			return nil, err
		}
		if k == 0 {
			return nil, &TimeoutError{Port: s.name, Op: "read until", Partial: out}
		}
		out = append(out, one[0])
		if one[0] == delim {
			break
		}
	}

	s.log.Tracef("read %q", out)
	return out, nil
}

// read performs one port read bounded by deadline. A zero-length result
// means the deadline passed.
func (s *Serial) read(p []byte, deadline time.Time) (int, error) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, nil
	}
	if err := s.port.SetReadTimeout(remaining); err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to set read timeout on %s", s.name)
	}
	n, err := s.port.Read(p)
	if err != nil && n == 0 {
		return 0, pkgerrors.Wrapf(err, "failed to read from %s", s.name)
	}
	return n, nil
}

// FlushInput discards any bytes received but not yet read.
func (s *Serial) FlushInput() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.port.ResetInputBuffer(); err != nil {
		return pkgerrors.Wrapf(err, "failed to flush input of %s", s.name)
	}
	return nil
}

// Close closes the port. Closing twice is a no-op.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.port.Close(); err != nil {
		return pkgerrors.Wrapf(err, "failed to close %s", s.name)
	}
	s.log.Info("closed serial port")
	return nil
}

// Ports returns the names of the serial ports present on the system.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list serial ports")
	}
	return ports, nil
}
