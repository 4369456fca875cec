// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the configuration structure for the
// guarded proxy: server settings, the upstream URL, circuit breaker thresholds,
// logging, and metrics.
package config
