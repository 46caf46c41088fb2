// Package telemetry bundles the observability stack of cuse: structured
// logging, Prometheus metrics, OpenTelemetry tracing and health checks.
//
//	tel, err := telemetry.New(&cfg.Telemetry, os.Stderr, health.VersionInfo{Version: version})
//	if err != nil {
//		return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	tel.Logger().Info("proxy started", "address", addr)
//	tel.Metrics().RecordRequest("intercept", "ok", elapsed, n)
//
// Each subpackage can also be used on its own.
package telemetry
