package lia

import (
	"bytes"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/itohio/sscd/pkg/config"
	"github.com/itohio/sscd/pkg/link"
)

// Mock simulates the amplifier behind a link.MockPort. The AC signal is
// cfg.Signal scaled by Source (1 when unset), with relative Gaussian noise.
type Mock struct {
	cfg    *config.MockConfig
	port   *link.MockPort
	Source func() float64

	mu     sync.Mutex
	rng    *rand.Rand
	slots  [MaxChannels]string
	phased int
}

// NewMock creates a simulated amplifier.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		cfg = &config.Default().Mock
	}
	m := &Mock{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(1, 2)),
	}
	m.port = link.NewMockPort(m.respond)
	return m
}

// Port returns the simulated serial port.
func (m *Mock) Port() *link.MockPort {
	return m.port
}

// AutoPhases returns how many times APHS was received.
func (m *Mock) AutoPhases() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phased
}

// Slot returns the channel assigned to data slot i (1-based).
func (m *Mock) Slot(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 1 || i > MaxChannels {
		return ""
	}
	return m.slots[i-1]
}

func (m *Mock) respond(written []byte) []byte {
	cmd := string(bytes.TrimRight(written, "\n"))

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case cmd == "*IDN?":
		return []byte(Identity + "\n")
	case cmd == "APHS":
		m.phased++
		return nil
	case cmd == "SNAPD?":
		if m.cfg.Latency > 0 {
			time.Sleep(m.cfg.Latency)
		}
		vals := make([]string, 0, MaxChannels)
		for _, ch := range m.slots {
			if ch == "" {
				continue
			}
			vals = append(vals, m.format(m.value(ch)))
		}
		return []byte(strings.Join(vals, ",") + "\r")
	case strings.HasPrefix(cmd, "OUTP? "):
		return []byte(m.format(m.value(strings.TrimPrefix(cmd, "OUTP? "))) + "\n")
	case strings.HasPrefix(cmd, "CDSP DAT"):
		rest := strings.TrimPrefix(cmd, "CDSP DAT")
		slot, ch, ok := strings.Cut(rest, ",")
		if !ok {
			return nil
		}
		i, err := strconv.Atoi(slot)
		if err != nil || i < 1 || i > MaxChannels {
			return nil
		}
		m.slots[i-1] = ch
		return nil
	}
	return nil
}

func (m *Mock) value(ch string) float64 {
	scale := 1.0
	if m.Source != nil {
		scale = m.Source()
	}
	ac := m.cfg.Signal * scale
	noise := m.cfg.Signal * m.cfg.NoiseLevel

	switch ch {
	case ChannelX:
		return ac + noise*m.rng.NormFloat64()
	case ChannelR:
		r := ac + noise*m.rng.NormFloat64()
		if r < 0 {
			r = -r
		}
		return r
	case ChannelXN:
		return noise
	case ChannelIN3:
		return m.cfg.DC * (1 + m.cfg.NoiseLevel*m.rng.NormFloat64())
	}
	return 0
}

func (m *Mock) format(v float64) string {
	return strconv.FormatFloat(v, 'e', 6, 64)
}
