package stage

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/sscd/pkg/config"
	"github.com/itohio/sscd/pkg/link"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		cmd     byte
		payload int32
		want    []byte
	}{
		{"getpos", CmdGetPos, 0, []byte{1, 60, 0, 0, 0, 0}},
		{"init", CmdInit, 0, []byte{1, 52, 0, 0, 0, 0}},
		{"move", CmdMove, 155000, []byte{1, 20, 0x78, 0x5d, 0x02, 0x00}},
		{"move negative", CmdMove, -1, []byte{1, 20, 0xff, 0xff, 0xff, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(Device, tt.cmd, tt.payload))
		})
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	payloads := []int32{0, 1, 255, 256, 65535, 65536, 155000, 1 << 24, math.MaxInt32}

	for _, p := range payloads {
		r, err := Decode(Encode(Device, CmdMove, p))
		require.NoError(t, err)
		assert.False(t, r.Moving, "payload %d", p)
		assert.Equal(t, p, r.Position)
	}
}

func TestDecode_SignByteIsMoving(t *testing.T) {
	for _, p := range []int32{-1, -2000, math.MinInt32} {
		r, err := Decode(Encode(Device, CmdGetPos, p))
		require.NoError(t, err)
		assert.True(t, r.Moving, "payload %d", p)
		assert.Equal(t, "moving", r.String())
	}

	r, err := Decode([]byte{1, 60, 0, 0, 0, 128})
	require.NoError(t, err)
	assert.True(t, r.Moving)

	r, err = Decode([]byte{1, 60, 0, 0, 0, 127})
	require.NoError(t, err)
	assert.False(t, r.Moving)
	assert.Equal(t, int32(127)<<24, r.Position)
}

func TestDecode_ShortFrame(t *testing.T) {
	_, err := Decode([]byte{1, 60, 0})
	assert.Error(t, err)
}

func TestPosition(t *testing.T) {
	port := link.NewMockPort(func(written []byte) []byte {
		if written[1] == CmdGetPos {
			return Encode(Device, CmdGetPos, 4242)
		}
		return nil
	})
	port.Feed([]byte{0xde, 0xad})
	s := New(link.New("stepper", port, 10*time.Millisecond, nil), 0, nil)

	r, err := s.Position()
	require.NoError(t, err)
	assert.Equal(t, Reading{Position: 4242}, r)
	assert.Equal(t, 1, port.Flushes())
	assert.Equal(t, [][]byte{{1, 60, 0, 0, 0, 0}}, port.Writes())
}

func TestPosition_Timeout(t *testing.T) {
	port := link.NewMockPort(nil)
	s := New(link.New("stepper", port, 10*time.Millisecond, nil), 0, nil)

	_, err := s.Position()
	assert.ErrorIs(t, err, link.ErrTimeout)
}

func TestHome(t *testing.T) {
	m := NewMock(nil)
	s := New(link.New("stepper", m.Port(), 10*time.Millisecond, nil), 0, nil)

	require.NoError(t, s.Home())
	assert.True(t, m.Homed())
	assert.Equal(t, [][]byte{{1, 52, 0, 0, 0, 0}}, m.Port().Writes())
}

func TestMove_WaitsForTarget(t *testing.T) {
	m := NewMock(&config.MockConfig{StepsPerMs: 100})
	s := New(link.New("stepper", m.Port(), 10*time.Millisecond, nil), 0, nil)

	require.NoError(t, s.Move(context.Background(), 1000))
	assert.Equal(t, int32(1000), m.Position())
	assert.Equal(t, []int32{1000}, m.Moves())

	// at least one Moving reply before arrival
	getpos := 0
	for _, w := range m.Port().Writes() {
		if w[1] == CmdGetPos {
			getpos++
		}
	}
	assert.Greater(t, getpos, 1)

	require.NoError(t, s.Move(context.Background(), 200))
	assert.Equal(t, int32(200), m.Position())
}

func TestMove_PollInterval(t *testing.T) {
	m := NewMock(&config.MockConfig{StepsPerMs: 1000})
	s := New(link.New("stepper", m.Port(), 10*time.Millisecond, nil), time.Millisecond, nil)

	require.NoError(t, s.Move(context.Background(), 5000))
	assert.Equal(t, int32(5000), m.Position())
}

func TestMove_Cancelled(t *testing.T) {
	port := link.NewMockPort(func(written []byte) []byte {
		if written[1] == CmdGetPos {
			return Encode(Device, CmdGetPos, -1)
		}
		return nil
	})
	s := New(link.New("stepper", port, 10*time.Millisecond, nil), time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Move(ctx, 100)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMove_NegativeTarget(t *testing.T) {
	port := link.NewMockPort(nil)
	s := New(link.New("stepper", port, 10*time.Millisecond, nil), 0, nil)

	assert.Error(t, s.Move(context.Background(), -5))
	assert.Empty(t, port.Writes())
}
