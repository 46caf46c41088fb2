// Package netio reads messages of unknown length from stream sockets whose
// peers signal the end of a message by going quiet or closing.
package netio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// MaxMessageSize bounds how much ReadUntilIdle accumulates.
const MaxMessageSize = 32 << 20

const chunkSize = 32 << 10

// ErrMessageTooLarge is returned when a peer sends more than MaxMessageSize.
var ErrMessageTooLarge = errors.New("netio: message exceeds size limit")

// ReadUntilIdle accumulates bytes from conn until the peer closes its side,
// no new byte arrives within idle, or done reports the buffer holds a whole
// message. done may be nil.
//
// Running out of time is not an error: whatever arrived is returned. A nil
// slice with a nil error means the peer sent nothing. The read deadline is
// also bounded by ctx.
func ReadUntilIdle(ctx context.Context, conn net.Conn, idle time.Duration, done func([]byte) bool) ([]byte, error) {
	var buf []byte
	chunk := make([]byte, chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return buf, err
		}

		deadline := time.Now().Add(idle)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return buf, fmt.Errorf("set read deadline: %w", err)
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if len(buf) > MaxMessageSize {
				return buf[:MaxMessageSize], ErrMessageTooLarge
			}
			if done != nil && done(buf) {
				return buf, nil
			}
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			return buf, nil
		case IsTimeout(err):
			if ctx.Err() != nil && len(buf) == 0 {
				return nil, ctx.Err()
			}
			return buf, nil
		default:
			return buf, err
		}
	}
}

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
