package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "proxy.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateBackend(&cfg.Backend, &cfg.Proxy)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validatePatcher(&cfg.Patcher)...)
	errs = append(errs, validateCapture(&cfg.Capture)...)
	errs = append(errs, validateAdmin(&cfg.Admin)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if err := validateHostPort(cfg.ListenAddress); err != "" {
		errs = append(errs, FieldError{Field: "proxy.listen_address", Message: err})
	}
	errs = append(errs, positive("proxy.client_timeout", cfg.ClientTimeout)...)
	errs = append(errs, positive("proxy.write_timeout", cfg.WriteTimeout)...)

	if cfg.LevelsEndpoint == "" || strings.Contains(cfg.LevelsEndpoint, "/") {
		errs = append(errs, FieldError{
			Field:   "proxy.levels_endpoint",
			Message: "must be a single non-empty path segment",
		})
	}
	if cfg.AllTabsEndpoint == "" || strings.Contains(cfg.AllTabsEndpoint, "/") {
		errs = append(errs, FieldError{
			Field:   "proxy.all_tabs_endpoint",
			Message: "must be a single non-empty path segment",
		})
	}
	return errs
}

func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	u, err := url.Parse(cfg.URL)
	switch {
	case cfg.URL == "":
		errs = append(errs, FieldError{Field: "upstream.url", Message: "upstream URL is required"})
	case err != nil:
		errs = append(errs, FieldError{Field: "upstream.url", Message: fmt.Sprintf("invalid URL: %v", err)})
	case u.Scheme != "https" && u.Scheme != "http":
		errs = append(errs, FieldError{Field: "upstream.url", Message: "scheme must be https or http"})
	case u.Host == "":
		errs = append(errs, FieldError{Field: "upstream.url", Message: "URL must include a host"})
	}
	errs = append(errs, positive("upstream.read_timeout", cfg.ReadTimeout)...)
	return errs
}

func validateBackend(cfg *BackendConfig, proxy *ProxyConfig) []FieldError {
	var errs []FieldError

	if err := validateHostPort(cfg.Address); err != "" {
		errs = append(errs, FieldError{Field: "backend.address", Message: err})
	} else if cfg.Address == proxy.ListenAddress {
		errs = append(errs, FieldError{
			Field:   "backend.address",
			Message: "backend address must differ from proxy listen address",
		})
	}
	errs = append(errs, positive("backend.dial_timeout", cfg.DialTimeout)...)
	errs = append(errs, positive("backend.timeout", cfg.Timeout)...)
	return errs
}

func validateCache(cfg *CacheConfig) []FieldError {
	var errs []FieldError

	if cfg.Capacity <= 0 {
		errs = append(errs, FieldError{Field: "cache.capacity", Message: "capacity must be positive"})
	}
	errs = append(errs, positive("cache.ttl", cfg.TTL)...)
	errs = append(errs, positive("cache.sweep_interval", cfg.SweepInterval)...)
	return errs
}

func validatePatcher(cfg *PatcherConfig) []FieldError {
	if cfg.Enabled && cfg.TargetAddress == "" {
		return []FieldError{{Field: "patcher.target_address", Message: "target address is required when patching is enabled"}}
	}
	return nil
}

func validateCapture(cfg *CaptureConfig) []FieldError {
	var errs []FieldError

	switch cfg.Mode {
	case "requests", "responses", "all":
	default:
		errs = append(errs, FieldError{
			Field:   "capture.mode",
			Message: fmt.Sprintf("invalid mode %q (must be requests, responses or all)", cfg.Mode),
		})
	}

	switch cfg.Backend {
	case "memory":
		if cfg.MaxEntries <= 0 {
			errs = append(errs, FieldError{Field: "capture.max_entries", Message: "max entries must be positive"})
		}
	case "sqlite":
		if cfg.SQLitePath == "" {
			errs = append(errs, FieldError{Field: "capture.sqlite_path", Message: "path is required for the sqlite backend"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "capture.backend",
			Message: fmt.Sprintf("invalid backend %q (must be memory or sqlite)", cfg.Backend),
		})
	}

	if cfg.MaxAge < 0 {
		errs = append(errs, FieldError{Field: "capture.max_age", Message: "max age cannot be negative"})
	}
	return errs
}

func validateAdmin(cfg *AdminConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}
	var errs []FieldError
	if err := validateHostPort(cfg.ListenAddress); err != "" {
		errs = append(errs, FieldError{Field: "admin.listen_address", Message: err})
	}
	errs = append(errs, positive("admin.read_timeout", cfg.ReadTimeout)...)
	errs = append(errs, positive("admin.write_timeout", cfg.WriteTimeout)...)
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn or error)", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json or text)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "path must start with /"})
	}
	for i := 1; i < len(cfg.Metrics.DurationBuckets); i++ {
		if cfg.Metrics.DurationBuckets[i] <= cfg.Metrics.DurationBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.duration_buckets",
				Message: "buckets must be strictly increasing",
			})
			break
		}
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q (must be always, never or ratio)", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: "sample ratio must be between 0.0 and 1.0",
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required when tracing is enabled",
			})
		}
	}
	return errs
}

// validateHostPort returns a message if addr is not a usable host:port.
func validateHostPort(addr string) string {
	if addr == "" {
		return "address is required"
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Sprintf("invalid address %q: %v", addr, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Sprintf("invalid port %q (must be 1-65535)", port)
	}
	return ""
}

func positive(field string, d time.Duration) []FieldError {
	if d <= 0 {
		return []FieldError{{Field: field, Message: "must be positive"}}
	}
	return nil
}
