// Package tracing provides OpenTelemetry tracing for cuse.
//
// Spans cover the expensive steps of a request: the client request itself,
// the search backend round trip and forwarding to the upstream game server.
// Spans are exported over OTLP gRPC. When tracing is disabled a noop tracer
// is used, so callers create spans unconditionally.
//
// # Sampling Strategies
//
//   - always: sample all traces
//   - never: sample no traces
//   - ratio: sample a fraction of traces by trace ID
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//		return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "backend.query")
//	defer func() { tracing.End(span, err) }()
//
// Trace and span ids are attached to log records by the logging package's
// context handler.
package tracing
