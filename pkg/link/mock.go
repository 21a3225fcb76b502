package link

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// Responder simulates an instrument: it receives every frame written to the
// port and returns the bytes the instrument sends back (nil for none).
type Responder func(written []byte) []byte

// MockPort is an in-memory Port. Reads never block: when no input is pending
// a read returns zero bytes, which a Serial link reports as a timeout.
type MockPort struct {
	mu      sync.Mutex
	respond Responder
	input   bytes.Buffer
	writes  [][]byte
	flushes int
	closed  bool

	// ReadError, when set, is returned by every Read.
	ReadError error
}

var _ Port = (*MockPort)(nil)

// NewMockPort creates a MockPort answering with respond (which may be nil).
func NewMockPort(respond Responder) *MockPort {
	return &MockPort{respond: respond}
}

// Feed appends unsolicited bytes to the pending input.
func (m *MockPort) Feed(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.input.Write(p)
}

func (m *MockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, errors.New("mock port closed")
	}
	if m.ReadError != nil {
		return 0, m.ReadError
	}
	if m.input.Len() == 0 {
		return 0, nil
	}
	return m.input.Read(p)
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, errors.New("mock port closed")
	}
	frame := append([]byte(nil), p...)
	m.writes = append(m.writes, frame)
	if m.respond != nil {
		m.input.Write(m.respond(frame))
	}
	return len(p), nil
}

func (m *MockPort) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.input.Reset()
	m.flushes++
	return nil
}

func (m *MockPort) SetReadTimeout(time.Duration) error {
	return nil
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Writes returns a copy of every frame written so far.
func (m *MockPort) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

// Flushes returns how many times the input buffer was reset.
func (m *MockPort) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

// Closed reports whether Close was called.
func (m *MockPort) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
