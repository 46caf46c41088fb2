// Package middleware holds the HTTP middleware of the admin listener.
//
// The chain, outermost first:
//
//	handler = Recovery(Logging(RequestID(CORS(mux))))
//
//   - RecoveryMiddleware turns handler panics into a logged 500.
//   - LoggingMiddleware logs method, path, status and latency.
//   - RequestIDMiddleware assigns a UUID, or reuses X-Request-ID, and puts
//     it in the context so every log line of the request carries it.
//   - CORSMiddleware answers browsers when origins are configured.
//
// The logging wrapper supports hijacking, so websocket upgrades pass
// through the whole chain.
package middleware
