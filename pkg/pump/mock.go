package pump

import (
	"bytes"
	"strconv"
	"strings"
	"sync"

	"github.com/itohio/sscd/pkg/link"
)

// Mock simulates the pump laser controller behind a link.MockPort.
type Mock struct {
	port *link.MockPort

	mu      sync.Mutex
	on      bool
	shutter bool
	power   float64
}

// NewMock creates a simulated controller with the diode off and the shutter
// closed.
func NewMock() *Mock {
	m := &Mock{}
	m.port = link.NewMockPort(m.respond)
	return m
}

// Port returns the simulated serial port.
func (m *Mock) Port() *link.MockPort {
	return m.port
}

func (m *Mock) respond(written []byte) []byte {
	cmd := string(bytes.TrimSuffix(written, []byte("\n")))

	m.mu.Lock()
	defer m.mu.Unlock()

	switch cmd {
	case "ON":
		m.on = true
	case "OFF":
		m.on = false
	case "SHT:1":
		m.shutter = true
	case "SHT:0":
		m.shutter = false
	case "?D":
		return boolReply(m.on)
	case "?SHT":
		return boolReply(m.shutter)
	case "?P":
		out := 0.0
		if m.on {
			out = m.power
		}
		return []byte(strconv.FormatFloat(out, 'f', 3, 64) + "\n")
	default:
		if v, ok := strings.CutPrefix(cmd, "P:"); ok {
			if w, err := strconv.ParseFloat(v, 64); err == nil {
				m.power = w
			}
		}
	}
	return nil
}

func boolReply(v bool) []byte {
	if v {
		return []byte("1\n")
	}
	return []byte("0\n")
}
