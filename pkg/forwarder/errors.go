package forwarder

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedMethod is returned for any method other than GET and
	// POST. Such requests are never sent upstream.
	ErrUnsupportedMethod = errors.New("forwarder: unsupported HTTP method")

	// ErrMalformedRequest is returned when the raw client request cannot be
	// parsed as HTTP.
	ErrMalformedRequest = errors.New("forwarder: malformed request")
)

// UpstreamError reports a failed exchange with the real server.
type UpstreamError struct {
	// Method and URL describe the request that failed
	Method string
	URL    string

	// Err is the underlying transport error
	Err error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("forwarder: %s %s: %v", e.Method, e.URL, e.Err)
}

// Unwrap returns the underlying error for error chain support.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}
