package config

import "time"

// Default values for configuration fields.
const (
	// Proxy defaults
	DefaultListenAddress   = "127.0.0.1:8124"
	DefaultClientTimeout   = 250 * time.Millisecond
	DefaultWriteTimeout    = 5 * time.Second
	DefaultIntercept       = true
	DefaultLevelsEndpoint  = "levels"
	DefaultAllTabsEndpoint = "query_levels"

	// Upstream defaults
	DefaultUpstreamURL         = "https://dojo.nplusplus.ninja"
	DefaultUpstreamReadTimeout = 2 * time.Second

	// Backend defaults
	DefaultBackendAddress     = "127.0.0.1:8125"
	DefaultBackendDialTimeout = 2 * time.Second
	DefaultBackendTimeout     = 5 * time.Second

	// Cache defaults
	DefaultCacheCapacity      = 1024
	DefaultCacheTTL           = 2 * time.Hour
	DefaultCacheSweepInterval = 5 * time.Minute

	// Patcher defaults
	DefaultPatcherEnabled = true
	DefaultTargetAddress  = DefaultUpstreamURL

	// Search defaults
	DefaultSearchDebounce = 500 * time.Millisecond

	// Capture defaults
	DefaultCaptureMode       = "all"
	DefaultCaptureBackend    = "memory"
	DefaultCaptureSQLitePath = "data/captures.db"
	DefaultCaptureMaxEntries = 1000
	DefaultCapturePrune      = "@hourly"

	// Admin defaults
	DefaultAdminListenAddress   = "127.0.0.1:8126"
	DefaultAdminReadTimeout     = 10 * time.Second
	DefaultAdminWriteTimeout    = 10 * time.Second
	DefaultAdminShutdownTimeout = 5 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsEnabled     = true
	DefaultPrometheusPath     = "/metrics"
	DefaultMetricsNamespace   = "cuse"
	DefaultMetricsSubsystem   = "proxy"
	DefaultTracingEnabled     = false
	DefaultTracingSampler     = "always"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingServiceName = "cuse"
	DefaultTracingInsecure    = true
	DefaultTracingTimeout     = 10 * time.Second
)

// DefaultDurationBuckets suits a local proxy whose slowest path is the
// backend timeout.
var DefaultDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Default returns a configuration with every field at its default value.
// Loading unmarshals the file on top of it, so booleans that default to
// true can still be switched off explicitly.
func Default() *Config {
	cfg := &Config{
		Proxy: ProxyConfig{
			Intercept: DefaultIntercept,
		},
		Patcher: PatcherConfig{
			Enabled: DefaultPatcherEnabled,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{
				Enabled: DefaultMetricsEnabled,
			},
			Tracing: TracingConfig{
				Enabled:  DefaultTracingEnabled,
				Insecure: DefaultTracingInsecure,
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Proxy defaults
	if cfg.Proxy.ListenAddress == "" {
		cfg.Proxy.ListenAddress = DefaultListenAddress
	}
	if cfg.Proxy.ClientTimeout == 0 {
		cfg.Proxy.ClientTimeout = DefaultClientTimeout
	}
	if cfg.Proxy.WriteTimeout == 0 {
		cfg.Proxy.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Proxy.LevelsEndpoint == "" {
		cfg.Proxy.LevelsEndpoint = DefaultLevelsEndpoint
	}
	if cfg.Proxy.AllTabsEndpoint == "" {
		cfg.Proxy.AllTabsEndpoint = DefaultAllTabsEndpoint
	}

	// Upstream defaults
	if cfg.Upstream.URL == "" {
		cfg.Upstream.URL = DefaultUpstreamURL
	}
	if cfg.Upstream.ReadTimeout == 0 {
		cfg.Upstream.ReadTimeout = DefaultUpstreamReadTimeout
	}

	// Backend defaults
	if cfg.Backend.Address == "" {
		cfg.Backend.Address = DefaultBackendAddress
	}
	if cfg.Backend.DialTimeout == 0 {
		cfg.Backend.DialTimeout = DefaultBackendDialTimeout
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = DefaultBackendTimeout
	}

	// Cache defaults
	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = DefaultCacheCapacity
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cache.SweepInterval == 0 {
		cfg.Cache.SweepInterval = DefaultCacheSweepInterval
	}

	// Patcher defaults
	if cfg.Patcher.TargetAddress == "" {
		cfg.Patcher.TargetAddress = DefaultTargetAddress
	}

	// Search defaults
	if cfg.Search.Debounce == 0 {
		cfg.Search.Debounce = DefaultSearchDebounce
	}

	// Capture defaults
	if cfg.Capture.Mode == "" {
		cfg.Capture.Mode = DefaultCaptureMode
	}
	if cfg.Capture.Backend == "" {
		cfg.Capture.Backend = DefaultCaptureBackend
	}
	if cfg.Capture.SQLitePath == "" {
		cfg.Capture.SQLitePath = DefaultCaptureSQLitePath
	}
	if cfg.Capture.MaxEntries == 0 {
		cfg.Capture.MaxEntries = DefaultCaptureMaxEntries
	}
	if cfg.Capture.PruneSchedule == "" {
		cfg.Capture.PruneSchedule = DefaultCapturePrune
	}

	// Admin defaults
	if cfg.Admin.ListenAddress == "" {
		cfg.Admin.ListenAddress = DefaultAdminListenAddress
	}
	if cfg.Admin.ReadTimeout == 0 {
		cfg.Admin.ReadTimeout = DefaultAdminReadTimeout
	}
	if cfg.Admin.WriteTimeout == 0 {
		cfg.Admin.WriteTimeout = DefaultAdminWriteTimeout
	}
	if cfg.Admin.ShutdownTimeout == 0 {
		cfg.Admin.ShutdownTimeout = DefaultAdminShutdownTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.DurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
}
