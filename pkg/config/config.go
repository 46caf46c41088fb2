package config

import "time"

// Config is the root configuration structure for cuse.
// It contains the interception proxy, the two remote peers it talks to,
// the result cache, the library patcher and the optional side services.
type Config struct {
	// Proxy contains the local listener that the game client connects to.
	Proxy ProxyConfig `yaml:"proxy"`

	// Upstream is the real game server that non-intercepted requests are
	// forwarded to.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Backend is the custom search service that answers level queries.
	Backend BackendConfig `yaml:"backend"`

	// Cache configures the decoded-collection cache.
	Cache CacheConfig `yaml:"cache"`

	// Patcher configures the client library address patch.
	Patcher PatcherConfig `yaml:"patcher"`

	// Search configures the active search file.
	Search SearchConfig `yaml:"search"`

	// Capture configures recording of raw request/response exchanges.
	Capture CaptureConfig `yaml:"capture"`

	// Admin configures the local HTTP listener used by the filter editor
	// and results viewer.
	Admin AdminConfig `yaml:"admin"`

	// Telemetry contains configuration for observability including logging,
	// metrics, and distributed tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProxyConfig contains configuration for the client-facing listener.
type ProxyConfig struct {
	// ListenAddress is the address the game client is redirected to.
	// If the port is taken, the next free port is used instead.
	// Default: "127.0.0.1:8124"
	ListenAddress string `yaml:"listen_address"`

	// ClientTimeout is how long a client socket may stay silent before the
	// request read is considered complete.
	// Default: 250ms
	ClientTimeout time.Duration `yaml:"client_timeout"`

	// WriteTimeout bounds writing a response back to the client.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Intercept enables answering level queries from the backend.
	// When false every request is forwarded.
	// Default: true
	Intercept bool `yaml:"intercept"`

	// InterceptAllTabs also intercepts the endpoint used by every tab,
	// not only the search tab.
	// Default: false
	InterceptAllTabs bool `yaml:"intercept_all_tabs"`

	// Paging queries the backend for every page the client asks for.
	// When false the last search result is served for every page.
	// Default: false
	Paging bool `yaml:"paging"`

	// LevelsEndpoint is the final path segment of search queries.
	// Default: "levels"
	LevelsEndpoint string `yaml:"levels_endpoint"`

	// AllTabsEndpoint is the final path segment of tab queries.
	// Default: "query_levels"
	AllTabsEndpoint string `yaml:"all_tabs_endpoint"`
}

// UpstreamConfig describes the real game server.
type UpstreamConfig struct {
	// URL is the scheme and host of the real server.
	// Default: "https://dojo.nplusplus.ninja"
	URL string `yaml:"url"`

	// ReadTimeout bounds a whole upstream exchange, response body included.
	// Default: 2s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// InsecureSkipVerify disables TLS certificate verification.
	// Default: false
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// BackendConfig describes the search backend.
type BackendConfig struct {
	// Address is the backend's TCP address. The proxy never binds its port.
	// Default: "127.0.0.1:8125"
	Address string `yaml:"address"`

	// DialTimeout bounds connecting to the backend.
	// Default: 2s
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// Timeout is how long the backend may stay silent before the reply is
	// considered complete.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig configures the collection cache.
type CacheConfig struct {
	// Capacity is the maximum number of cached collections.
	// Default: 1024
	Capacity int `yaml:"capacity"`

	// TTL is how long an untouched collection is kept.
	// Default: 2h
	TTL time.Duration `yaml:"ttl"`

	// SweepInterval is how often expired collections are removed.
	// Default: 5m
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// PatcherConfig configures the client library patch.
type PatcherConfig struct {
	// Enabled patches the library on startup and restores it on shutdown.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LibraryPath is the shared library to patch. Empty means the default
	// Steam install location.
	LibraryPath string `yaml:"library_path"`

	// TargetAddress is the server address compiled into the library.
	// Default: "https://dojo.nplusplus.ninja"
	TargetAddress string `yaml:"target_address"`
}

// SearchConfig configures the active search.
type SearchConfig struct {
	// File is a YAML file holding the active filter set. Empty disables it.
	File string `yaml:"file"`

	// Watch re-runs the search whenever File changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce collapses bursts of file events.
	// Default: 500ms
	Debounce time.Duration `yaml:"debounce"`
}

// CaptureConfig configures exchange recording.
type CaptureConfig struct {
	// Enabled turns recording on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Mode selects what is kept: "requests", "responses" or "all".
	// Default: "all"
	Mode string `yaml:"mode"`

	// Backend is "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	// Default: "data/captures.db"
	SQLitePath string `yaml:"sqlite_path"`

	// MaxEntries caps the memory backend. Oldest entries are dropped.
	// Default: 1000
	MaxEntries int `yaml:"max_entries"`

	// MaxAge removes exchanges older than this on every prune.
	// Zero keeps exchanges until MaxEntries pushes them out.
	MaxAge time.Duration `yaml:"max_age"`

	// PruneSchedule is the cron expression for age pruning.
	// Default: "@hourly"
	PruneSchedule string `yaml:"prune_schedule"`
}

// AdminConfig configures the local admin listener.
type AdminConfig struct {
	// Enabled starts the admin listener.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the admin HTTP address.
	// Default: "127.0.0.1:8126"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout and WriteTimeout bound admin requests.
	// Default: 10s
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown of the admin listener.
	// Default: 5s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AllowedOrigins enables CORS for the listed browser origins.
	// Default: none
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus endpoint on the admin listener.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "cuse"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "proxy"
	Subsystem string `yaml:"subsystem"`

	// DurationBuckets defines histogram buckets for latencies (seconds).
	// Default: [0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10]
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "cuse"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the collector connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
