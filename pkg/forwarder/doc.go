// Package forwarder passes client requests that are not intercepted through
// to the real game server.
//
// The raw request read off the client socket is parsed, stripped of
// content negotiation and client identifying headers, re-addressed to the
// upstream host and sent over HTTPS. The upstream answer is serialized back
// into a single raw HTTP/1.1 message that can be written to the client
// socket as is. Only GET and POST are supported; anything else fails with
// ErrUnsupportedMethod without touching the network.
package forwarder
