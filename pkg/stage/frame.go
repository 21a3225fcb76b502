package stage

import (
	"encoding/binary"
	"fmt"
)

// FrameSize is the length of every command and reply frame.
const FrameSize = 6

// Device is the address of the single stage on the chain.
const Device byte = 1

// Command codes.
const (
	CmdMove   byte = 20
	CmdInit   byte = 52
	CmdGetPos byte = 60
)

// Reading is a decoded position reply. A reply whose most significant
// position byte exceeds 127 does not carry a usable position and is reported
// as Moving.
type Reading struct {
	Position int32
	Moving   bool
}

func (r Reading) String() string {
	if r.Moving {
		return "moving"
	}
	return fmt.Sprintf("%d", r.Position)
}

// Encode builds a command frame: device, command, little-endian payload.
func Encode(device, cmd byte, payload int32) []byte {
	frame := make([]byte, FrameSize)
	frame[0] = device
	frame[1] = cmd
	binary.LittleEndian.PutUint32(frame[2:], uint32(payload))
	return frame
}

// Decode extracts the position from a reply frame.
func Decode(frame []byte) (Reading, error) {
	if len(frame) != FrameSize {
		return Reading{}, fmt.Errorf("stage reply is %d bytes, expected %d", len(frame), FrameSize)
	}
	if frame[5] > 127 {
		return Reading{Moving: true}, nil
	}
	return Reading{Position: int32(binary.LittleEndian.Uint32(frame[2:]))}, nil
}
