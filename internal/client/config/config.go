package config

import "time"

// Config holds runtime settings for the storefront CLI.
//
// Fields:
//   - APIBaseURL: base URL of the storefront gateway.
//   - DatabasePath: sqlite file backing the offline store.
//   - HTTPTimeout: per-request timeout for gateway calls.
//   - PollInterval: cadence of the single-order status poll.
//   - SweepInterval: cadence of the order history sweep.
//   - LivenessInterval: cadence of the session liveness recheck.
//
// Units: all intervals are time.Duration (e.g., 3*time.Second).
type Config struct {
	APIBaseURL       string
	DatabasePath     string
	HTTPTimeout      time.Duration
	PollInterval     time.Duration
	SweepInterval    time.Duration
	LivenessInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8000"
	c.DatabasePath = "storefront.db"
	c.HTTPTimeout = 10 * time.Second
	c.PollInterval = 3 * time.Second
	c.SweepInterval = 5 * time.Second
	c.LivenessInterval = 5 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
