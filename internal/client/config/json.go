package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/storefront/internal/flagx"
	"github.com/dmitrijs2005/storefront/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	APIBaseURL       string         `json:"api_base_url"`
	DatabasePath     string         `json:"database_path"`
	HTTPTimeout      timex.Duration `json:"http_timeout"`
	PollInterval     timex.Duration `json:"poll_interval"`
	SweepInterval    timex.Duration `json:"sweep_interval"`
	LivenessInterval timex.Duration `json:"liveness_interval"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// Lookup order for the JSON file path:
//  1. Command-line flags (-c or -config) via flagx.JsonConfigFlags().
//  2. If empty, no JSON is loaded and the function returns.
//
// Behavior:
//   - Reads and unmarshals the JSON into JsonConfig.
//   - Copies known fields into the provided Config.
//   - Panics on read or unmarshal errors (caller should recover if desired).
//
// Intended usage is: defaults -> parseJson -> parseFlags, where later stages
// override earlier ones.
func parseJson(cfg *Config) {
	// Resolve file path from flags.
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.APIBaseURL != "" {
		cfg.APIBaseURL = jc.APIBaseURL
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.HTTPTimeout.Duration != 0 {
		cfg.HTTPTimeout = time.Duration(jc.HTTPTimeout.Duration)
	}
	if jc.PollInterval.Duration != 0 {
		cfg.PollInterval = time.Duration(jc.PollInterval.Duration)
	}
	if jc.SweepInterval.Duration != 0 {
		cfg.SweepInterval = time.Duration(jc.SweepInterval.Duration)
	}
	if jc.LivenessInterval.Duration != 0 {
		cfg.LivenessInterval = time.Duration(jc.LivenessInterval.Duration)
	}
}
