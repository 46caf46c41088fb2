package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/edelkas/cuse/pkg/config"
	"github.com/edelkas/cuse/pkg/telemetry/health"
	"github.com/edelkas/cuse/pkg/telemetry/logging"
	"github.com/edelkas/cuse/pkg/telemetry/metrics"
	"github.com/edelkas/cuse/pkg/telemetry/tracing"
)

// Telemetry holds the initialized observability components.
type Telemetry struct {
	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	health  *health.Checker
	version health.VersionInfo
}

// New initializes logging, metrics and tracing from cfg. Logs go to w and
// the logger is installed as the slog default.
func New(cfg *config.TelemetryConfig, w io.Writer, version health.VersionInfo) (*Telemetry, error) {
	logger, err := logging.Setup(cfg.Logging, w)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	tracing.ServiceVersion = version.Version
	tracer, err := tracing.New(&cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	return &Telemetry{
		logger:  logger,
		metrics: metrics.NewCollector(&cfg.Metrics, nil),
		tracer:  tracer,
		health:  health.New(health.DefaultCheckTimeout),
		version: version,
	}, nil
}

// Logger returns the root logger.
func (t *Telemetry) Logger() *slog.Logger { return t.logger }

// Metrics returns the metrics collector.
func (t *Telemetry) Metrics() *metrics.Collector { return t.metrics }

// Tracer returns the tracer. It is a noop tracer when tracing is disabled.
func (t *Telemetry) Tracer() *tracing.Tracer { return t.tracer }

// Health returns the health checker.
func (t *Telemetry) Health() *health.Checker { return t.health }

// Version returns the build information passed to New.
func (t *Telemetry) Version() health.VersionInfo { return t.version }

// Shutdown flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.tracer.Shutdown(ctx)
}
