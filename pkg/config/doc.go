// Package config provides configuration management for cuse.
//
// Configuration is read from a YAML file decoded over the built-in defaults,
// then overridden from the environment, then validated.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("cuse.yaml")
//
//  2. From a YAML file with environment variable overrides. A missing file
//     is not an error and yields the defaults:
//     cfg, err := config.LoadConfigWithEnvOverrides("cuse.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CUSE_SECTION_FIELD:
//
//   - CUSE_PROXY_LISTEN_ADDRESS overrides proxy.listen_address
//   - CUSE_BACKEND_ADDRESS overrides backend.address
//   - CUSE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// A .env file in the working directory is loaded into the environment first.
// Variables that are already set are not replaced by it.
//
// # Validation
//
// Validate collects every problem into a single ValidationError:
//
//   - addresses must be host:port with a port in 1-65535
//   - timeouts and cache sizes must be positive
//   - enumerations (log level, capture mode, sampler) must be known values
package config
