package link

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is matched by every TimeoutError.
	ErrTimeout = errors.New("serial read timed out")

	// ErrProtocol is matched by every ProtocolError.
	ErrProtocol = errors.New("protocol violation")

	// ErrClosed is returned by operations on a closed link.
	ErrClosed = errors.New("link closed")
)

// TimeoutError reports a read that could not be satisfied before the link
// timeout elapsed. Partial holds whatever arrived before the deadline.
type TimeoutError struct {
	Port    string
	Op      string
	Partial []byte
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s on %s: timed out after %d bytes (%q)", e.Op, e.Port, len(e.Partial), e.Partial)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// ProtocolError reports a response that does not match what the instrument
// protocol allows. Command and Response hold the raw wire bytes.
type ProtocolError struct {
	Device   string
	Command  []byte
	Response []byte
	Reason   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s: sent %q, got %q", e.Device, e.Reason, e.Command, e.Response)
}

func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}
