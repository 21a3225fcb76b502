package stage

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/itohio/sscd/pkg/config"
	"github.com/itohio/sscd/pkg/link"
)

// Mock simulates the stepper controller behind a link.MockPort. After a MOVE
// the simulated stage travels at cfg.StepsPerMs (at least one millisecond of
// travel per poll) and answers GETPOS with Moving frames until it arrives.
type Mock struct {
	cfg  *config.MockConfig
	port *link.MockPort

	mu       sync.Mutex
	position int32
	target   int32
	lastPoll time.Time
	moves    []int32
	homed    bool
}

// NewMock creates a simulated controller resting at position 0.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		cfg = &config.Default().Mock
	}
	m := &Mock{cfg: cfg}
	m.port = link.NewMockPort(m.respond)
	return m
}

// Port returns the simulated serial port.
func (m *Mock) Port() *link.MockPort {
	return m.port
}

// Position returns the simulated stage position.
func (m *Mock) Position() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// Moves returns every MOVE target received.
func (m *Mock) Moves() []int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int32, len(m.moves))
	copy(out, m.moves)
	return out
}

// Homed reports whether INIT was received.
func (m *Mock) Homed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.homed
}

func (m *Mock) respond(written []byte) []byte {
	if len(written) != FrameSize || written[0] != Device {
		return nil
	}
	payload := int32(binary.LittleEndian.Uint32(written[2:]))

	m.mu.Lock()
	defer m.mu.Unlock()

	switch written[1] {
	case CmdMove:
		m.target = payload
		m.moves = append(m.moves, payload)
		m.lastPoll = time.Now()
		return nil
	case CmdInit:
		m.target = 0
		m.position = 0
		m.homed = true
		return nil
	case CmdGetPos:
		m.travel()
		if m.position != m.target {
			return Encode(Device, CmdGetPos, -1)
		}
		return Encode(Device, CmdGetPos, m.position)
	}
	return nil
}

func (m *Mock) travel() {
	now := time.Now()
	ms := int64(now.Sub(m.lastPoll) / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	m.lastPoll = now

	step := int64(m.cfg.StepsPerMs) * ms
	if step < 1 {
		step = 1
	}
	dist := int64(m.target) - int64(m.position)
	switch {
	case dist > step:
		m.position += int32(step)
	case dist < -step:
		m.position -= int32(step)
	default:
		m.position = m.target
	}
}
