package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg *Config
}

// NewTestConfig creates a new ConfigBuilder starting from the defaults.
func NewTestConfig() *ConfigBuilder {
	return &ConfigBuilder{cfg: Default()}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return b.cfg
}

// WithListenAddress sets the proxy listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Proxy.ListenAddress = addr
	return b
}

// WithBackendAddress sets the backend address.
func (b *ConfigBuilder) WithBackendAddress(addr string) *ConfigBuilder {
	b.cfg.Backend.Address = addr
	return b
}

// WithCache sets the cache parameters.
func (b *ConfigBuilder) WithCache(capacity int, ttl time.Duration) *ConfigBuilder {
	b.cfg.Cache.Capacity = capacity
	b.cfg.Cache.TTL = ttl
	return b
}

// WithCapture enables capturing with the given backend.
func (b *ConfigBuilder) WithCapture(backend string) *ConfigBuilder {
	b.cfg.Capture.Enabled = true
	b.cfg.Capture.Backend = backend
	return b
}

// WithLogLevel sets the logging level.
func (b *ConfigBuilder) WithLogLevel(level string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	return b
}

// WithTracing enables tracing with the given sampler.
func (b *ConfigBuilder) WithTracing(sampler string, ratio float64) *ConfigBuilder {
	b.cfg.Telemetry.Tracing.Enabled = true
	b.cfg.Telemetry.Tracing.Sampler = sampler
	b.cfg.Telemetry.Tracing.SampleRatio = ratio
	return b
}

// MinimalConfig returns the smallest valid configuration.
func MinimalConfig() *Config {
	return NewTestConfig().Build()
}
