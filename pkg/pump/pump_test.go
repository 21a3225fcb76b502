package pump

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/sscd/pkg/link"
)

func newPump(respond link.Responder) (*Pump, *link.MockPort) {
	port := link.NewMockPort(respond)
	return New(link.New("pump", port, 10*time.Millisecond, nil), nil), port
}

func reply(s string) link.Responder {
	return func([]byte) []byte { return []byte(s) }
}

func TestActuation(t *testing.T) {
	p, port := newPump(nil)

	require.NoError(t, p.On())
	require.NoError(t, p.Off())
	require.NoError(t, p.OpenShutter())
	require.NoError(t, p.CloseShutter())
	require.NoError(t, p.SetPower(2.5))
	require.NoError(t, p.SetPower(1))

	assert.Equal(t, [][]byte{
		[]byte("ON\n"),
		[]byte("OFF\n"),
		[]byte("SHT:1\n"),
		[]byte("SHT:0\n"),
		[]byte("P:2.5\n"),
		[]byte("P:1\n"),
	}, port.Writes())
	assert.Zero(t, port.Flushes())
}

func TestSetPower_OutOfRange(t *testing.T) {
	p, port := newPump(nil)

	assert.Error(t, p.SetPower(-1))
	assert.Error(t, p.SetPower(5.5))
	assert.Empty(t, port.Writes())
}

func TestBooleanQueries(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    bool
		wantErr bool
	}{
		{"true", "1\n", true, false},
		{"false", "0\n", false, false},
		{"garbage", "2\n", false, true},
		{"no newline", "1\r", false, true},
	}

	queries := []struct {
		name  string
		cmd   string
		query func(*Pump) (bool, error)
	}{
		{"diode", "?D\n", (*Pump).DiodeIsOn},
		{"shutter", "?SHT\n", (*Pump).ShutterIsOpen},
	}

	for _, q := range queries {
		for _, tt := range tests {
			t.Run(q.name+"/"+tt.name, func(t *testing.T) {
				p, port := newPump(reply(tt.reply))
				port.Feed([]byte("0\n"))

				got, err := q.query(p)
				if tt.wantErr {
					require.Error(t, err)
					assert.ErrorIs(t, err, link.ErrProtocol)
					var perr *link.ProtocolError
					require.ErrorAs(t, err, &perr)
					assert.Equal(t, q.cmd, string(perr.Command))
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				assert.Equal(t, 1, port.Flushes())
			})
		}
	}
}

func TestCurrentPower(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    float64
		wantErr bool
	}{
		{"integer", "3\n", 3, false},
		{"decimal", "2.750\r\n", 2.75, false},
		{"zero", "0\n", 0, false},
		{"above range", "7.5\n", 0, true},
		{"negative", "-1\n", 0, true},
		{"text", "ERR\n", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, port := newPump(reply(tt.reply))

			got, err := p.CurrentPower()
			if tt.wantErr {
				assert.ErrorIs(t, err, link.ErrProtocol)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, [][]byte{[]byte("?P\n")}, port.Writes())
		})
	}
}

func TestCurrentPower_Timeout(t *testing.T) {
	p, _ := newPump(reply("2.5"))

	_, err := p.CurrentPower()
	assert.ErrorIs(t, err, link.ErrTimeout)
}

func TestDiodeIsOn_Timeout(t *testing.T) {
	p, _ := newPump(nil)

	_, err := p.DiodeIsOn()
	assert.ErrorIs(t, err, link.ErrTimeout)
	assert.NotErrorIs(t, err, link.ErrProtocol)
}

func TestShutterIsOpen_Timeout(t *testing.T) {
	p, _ := newPump(reply("1"))

	_, err := p.ShutterIsOpen()
	assert.ErrorIs(t, err, link.ErrTimeout)
	assert.NotErrorIs(t, err, link.ErrProtocol)
}

func TestMock(t *testing.T) {
	m := NewMock()
	p := New(link.New("pump", m.Port(), 10*time.Millisecond, nil), nil)

	on, err := p.DiodeIsOn()
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, p.SetPower(1.25))
	require.NoError(t, p.On())
	require.NoError(t, p.OpenShutter())

	on, err = p.DiodeIsOn()
	require.NoError(t, err)
	assert.True(t, on)

	open, err := p.ShutterIsOpen()
	require.NoError(t, err)
	assert.True(t, open)

	w, err := p.CurrentPower()
	require.NoError(t, err)
	assert.InDelta(t, 1.25, w, 1e-9)

	require.NoError(t, p.Off())
	w, err = p.CurrentPower()
	require.NoError(t, err)
	assert.Zero(t, w)
}
