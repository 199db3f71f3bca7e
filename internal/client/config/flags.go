package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/storefront/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the storefront gateway (default from Config)
//	-d string   path to the local sqlite database (default from Config)
//	-p int      order status poll interval in seconds (default from Config)
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "base URL of the storefront gateway")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path to the local sqlite database")
	pollInterval := fs.Int("p", int(cfg.PollInterval.Seconds()), "order status poll interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.PollInterval = time.Duration(*pollInterval) * time.Second
}
