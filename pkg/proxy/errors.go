package proxy

import "errors"

// ErrMalformedRequest is returned when the bytes read from a client do not
// start with an HTTP request line.
var ErrMalformedRequest = errors.New("proxy: malformed request")
