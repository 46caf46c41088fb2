package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyReply is returned when there is no payload at all, which
	// happens before the first search has been made.
	ErrEmptyReply = errors.New("wire: empty reply")

	// ErrTooShort is returned for payloads shorter than the 48-byte header.
	ErrTooShort = errors.New("wire: payload shorter than query header")

	// ErrInvalidType is returned when the header type is not a level list.
	ErrInvalidType = errors.New("wire: payload is not a level list")

	// ErrModeMismatch is returned when the payload mode differs from the
	// mode the client asked for.
	ErrModeMismatch = errors.New("wire: payload mode does not match request")
)

// Reason maps a decoding error to a short label suitable for logs and
// metric labels. Joined errors report the first known reason.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyReply):
		return "empty"
	case errors.Is(err, ErrTooShort):
		return "length"
	case errors.Is(err, ErrInvalidType):
		return "type"
	case errors.Is(err, ErrModeMismatch):
		return "mode"
	default:
		return "unknown"
	}
}

func typeError(got uint32) error {
	return fmt.Errorf("%w: type %d", ErrInvalidType, got)
}

func modeError(got, want Mode) error {
	return fmt.Errorf("%w: got %s, want %s", ErrModeMismatch, got, want)
}
