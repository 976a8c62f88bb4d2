package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/workshop-watcher/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   database path or postgres:// DSN (default from Config)
//	-w int      poll interval in seconds; 0 runs a single cycle
//	-l string   log level (debug, info, warn, error)
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with the JSON stage's
// -c/-config flags.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-w", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database path or postgres:// DSN")
	pollSeconds := fs.Int("w", int(cfg.PollInterval.Seconds()), "poll interval in seconds (0 = run once)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.PollInterval = time.Duration(*pollSeconds) * time.Second
}
