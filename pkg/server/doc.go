// Package server runs the two listeners of cuse.
//
// Server is the client-facing TCP listener. The game client is redirected
// to it by the patched library, so it binds the configured port or, when
// that is taken, the next free one (never the backend's). Connections are
// served strictly one at a time: read until the request is complete or the
// client goes quiet, answer through the proxy engine, write, close. A
// failing or panicking connection is logged and dropped, and the loop goes
// on.
//
// Admin is the optional HTTP listener for local tools:
//
//	GET  /health, /ready, /version   liveness, readiness and build info
//	GET  /metrics                    Prometheus exposition
//	POST /api/search                 run a filter set, return the collection
//	GET  /api/session                active search and paging state
//	GET  /api/cache                  cache occupancy
//	GET  /api/captures               recorded exchanges (route, limit)
//	GET  /ws/collections             websocket stream of decoded collections
package server
