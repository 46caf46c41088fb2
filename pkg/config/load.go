package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CUSE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded over Default(), then validated. Environment variables
// are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration and applies environment
// variable overrides named CUSE_SECTION_FIELD (e.g. CUSE_PROXY_LISTEN_ADDRESS).
// Environment variables always take precedence over the file.
//
// A missing file is not an error: the defaults are used instead. Variables
// from a .env file in the working directory are loaded first, without
// replacing variables already set in the environment.
//
// The loading sequence is:
// 1. Load .env into the environment
// 2. Decode the YAML file over the defaults (if it exists)
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	var cfg *Config
	if path != "" {
		var err error
		cfg, err = LoadConfig(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if cfg == nil {
		cfg = Default()
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are skipped and existing variables win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load environment file %q: %w", p, err)
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Proxy overrides
	envString("PROXY_LISTEN_ADDRESS", &cfg.Proxy.ListenAddress)
	envDuration("PROXY_CLIENT_TIMEOUT", &cfg.Proxy.ClientTimeout)
	envDuration("PROXY_WRITE_TIMEOUT", &cfg.Proxy.WriteTimeout)
	envBool("PROXY_INTERCEPT", &cfg.Proxy.Intercept)
	envBool("PROXY_INTERCEPT_ALL_TABS", &cfg.Proxy.InterceptAllTabs)
	envBool("PROXY_PAGING", &cfg.Proxy.Paging)

	// Upstream overrides
	envString("UPSTREAM_URL", &cfg.Upstream.URL)
	envDuration("UPSTREAM_READ_TIMEOUT", &cfg.Upstream.ReadTimeout)
	envBool("UPSTREAM_INSECURE_SKIP_VERIFY", &cfg.Upstream.InsecureSkipVerify)

	// Backend overrides
	envString("BACKEND_ADDRESS", &cfg.Backend.Address)
	envDuration("BACKEND_DIAL_TIMEOUT", &cfg.Backend.DialTimeout)
	envDuration("BACKEND_TIMEOUT", &cfg.Backend.Timeout)

	// Cache overrides
	envInt("CACHE_CAPACITY", &cfg.Cache.Capacity)
	envDuration("CACHE_TTL", &cfg.Cache.TTL)
	envDuration("CACHE_SWEEP_INTERVAL", &cfg.Cache.SweepInterval)

	// Patcher overrides
	envBool("PATCHER_ENABLED", &cfg.Patcher.Enabled)
	envString("PATCHER_LIBRARY_PATH", &cfg.Patcher.LibraryPath)
	envString("PATCHER_TARGET_ADDRESS", &cfg.Patcher.TargetAddress)

	// Search overrides
	envString("SEARCH_FILE", &cfg.Search.File)
	envBool("SEARCH_WATCH", &cfg.Search.Watch)

	// Capture overrides
	envBool("CAPTURE_ENABLED", &cfg.Capture.Enabled)
	envString("CAPTURE_MODE", &cfg.Capture.Mode)
	envString("CAPTURE_BACKEND", &cfg.Capture.Backend)
	envString("CAPTURE_SQLITE_PATH", &cfg.Capture.SQLitePath)
	envDuration("CAPTURE_MAX_AGE", &cfg.Capture.MaxAge)
	envString("CAPTURE_PRUNE_SCHEDULE", &cfg.Capture.PruneSchedule)

	// Admin overrides
	envBool("ADMIN_ENABLED", &cfg.Admin.Enabled)
	envString("ADMIN_LISTEN_ADDRESS", &cfg.Admin.ListenAddress)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
}

// Unparseable values are ignored and the current value is kept.

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envFloat(name string, dst *float64) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
