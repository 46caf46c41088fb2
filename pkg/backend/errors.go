package backend

import (
	"errors"
	"fmt"
)

// ErrNoReply is returned when the backend accepted the query but sent no
// bytes before going quiet.
var ErrNoReply = errors.New("backend: no reply before timeout")

// DialError reports a failed connection to the backend. It is not retried.
type DialError struct {
	// Address is the backend address that was dialed
	Address string

	// Err is the underlying network error
	Err error
}

// Error implements the error interface.
func (e *DialError) Error() string {
	return fmt.Sprintf("backend: dial %s: %v", e.Address, e.Err)
}

// Unwrap returns the underlying error for error chain support.
func (e *DialError) Unwrap() error {
	return e.Err
}

// Outcome maps a query error to a metric label.
func Outcome(err error) string {
	var dialErr *DialError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoReply):
		return "empty"
	case errors.As(err, &dialErr):
		return "unreachable"
	default:
		return "error"
	}
}
