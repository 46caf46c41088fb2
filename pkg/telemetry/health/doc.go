// Package health serves liveness, readiness and version endpoints on the
// admin listener.
//
// Readiness aggregates named checks registered by the command: a dial to
// the search backend, a ping of the capture store and the patch state of
// the game library. A failing check marks the report degraded and the
// readiness endpoint answers 503.
//
//	checker := health.New(2 * time.Second)
//	checker.Register("backend", client.Ping)
//	health.Mount(mux, checker, health.VersionInfo{Version: version})
package health
