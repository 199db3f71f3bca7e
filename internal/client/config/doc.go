// Package config loads runtime configuration for the storefront CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the storefront gateway
//	-d string   path to the local sqlite database
//	-p int      order status poll interval (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "api_base_url": "http://127.0.0.1:8000",
//	  "database_path": "storefront.db",
//	  "http_timeout": "10s",
//	  "poll_interval": "3s",
//	  "sweep_interval": "5s",
//	  "liveness_interval": "5s"
//	}
//
// Primary API
//
//   - type Config                     — runtime settings for the CLI
//   - func LoadConfig() *Config       — builds Config by applying defaults, JSON, then flags
//   - func (*Config) LoadDefaults()   — sets sensible defaults
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
