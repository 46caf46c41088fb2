// Package metrics provides Prometheus metrics collection for cuse.
//
// # Metrics Categories
//
//   - Request Metrics: client requests by route and outcome, with latency
//     and response size
//   - Backend Metrics: search backend queries by outcome, latency, reply size
//   - Codec Metrics: decoded payloads and rejections by reason
//   - Cache Metrics: hits, misses, evictions by reason, occupied slots
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	collector.RecordRequest("intercept", "ok", 12*time.Millisecond, 48)
//	collector.RecordBackendQuery("ok", 300*time.Millisecond, 5120)
//	collector.RecordDecode("mode", 0)
//
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// The collector implements the cache package's Recorder interface, so it can
// be handed straight to cache.New.
//
// When metrics are disabled in the configuration every Record method is a
// no-op, but the handler still serves the (empty) registry.
package metrics
