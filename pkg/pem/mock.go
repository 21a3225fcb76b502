package pem

import (
	"bytes"
	"strings"
	"sync"

	"github.com/itohio/sscd/pkg/link"
)

// Mock simulates the modulator controller behind a link.MockPort. Well-formed
// commands are acknowledged, anything else gets no reply.
type Mock struct {
	port *link.MockPort

	mu          sync.Mutex
	wavelength  string
	retardation string
	enabled     bool
}

// NewMock creates a simulated controller.
func NewMock() *Mock {
	m := &Mock{}
	m.port = link.NewMockPort(m.respond)
	return m
}

// Port returns the simulated serial port.
func (m *Mock) Port() *link.MockPort {
	return m.port
}

// Wavelength returns the last wavelength code received.
func (m *Mock) Wavelength() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wavelength
}

// Retardation returns the retardation setting and whether it is enabled.
func (m *Mock) Retardation() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retardation, m.enabled
}

func (m *Mock) respond(written []byte) []byte {
	if !bytes.HasSuffix(written, []byte("\r\n")) {
		return nil
	}
	cmd := string(bytes.TrimSuffix(written, []byte("\r\n")))
	key, val, ok := strings.Cut(cmd, ":")
	if !ok || val == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch key {
	case "W":
		m.wavelength = val
	case "R":
		m.retardation = val
	case "I":
		switch val {
		case "0":
			m.enabled = true
		case "1":
			m.enabled = false
		default:
			return nil
		}
	default:
		return nil
	}
	return Ack
}
