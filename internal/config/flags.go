package config

import (
	"flag"
	"fmt"
	"os"
)

// ParseFlags parses command-line flags and returns a Config.
// Positional arguments select specific files or paths to run; when omitted
// the harness falls back to its built-in discovery roots.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `go-test-harness - test orchestration with ordered output multiplexing

Usage:
  go-test-harness [flags] [paths...]

Mode:
`)
		printFlagCategory([]string{"watch"})

		fmt.Fprintf(os.Stderr, "\nBuild:\n")
		printFlagCategory([]string{"build-cmd", "build-out", "build-interval"})

		fmt.Fprintf(os.Stderr, "\nSpec Runner:\n")
		printFlagCategory([]string{"spec-cmd"})

		fmt.Fprintf(os.Stderr, "\nWatch Triggers:\n")
		printFlagCategory([]string{"debounce", "poll-interval", "notify-url"})

		fmt.Fprintf(os.Stderr, "\nReadiness Probes:\n")
		printFlagCategory([]string{"db-port", "devserver-port", "browser-port", "skip-probes"})

		fmt.Fprintf(os.Stderr, "\nObservability:\n")
		printFlagCategory([]string{"metrics", "v", "log-format"})

		fmt.Fprintf(os.Stderr, `
Examples:
  # Run everything once
  go-test-harness

  # Run a single spec file
  go-test-harness test/spec/login.spec.js

  # Watch mode with Prometheus metrics
  go-test-harness -watch -metrics 127.0.0.1:17092

`)
	}

	// Mode
	flag.BoolVar(&cfg.Watch, "watch", cfg.Watch, "Re-run on file changes and dev server notifications")

	// Build
	flag.StringVar(&cfg.BuildCommand, "build-cmd", cfg.BuildCommand, "Bundler command for build-based categories")
	flag.StringVar(&cfg.BuildOutDir, "build-out", cfg.BuildOutDir, "Directory for built test binaries")
	flag.DurationVar(&cfg.BuildInterval, "build-interval", cfg.BuildInterval, "Rebuild poll interval in watch mode")

	// Spec runner
	flag.StringVar(&cfg.SpecCommand, "spec-cmd", cfg.SpecCommand, "Command that interprets spec files")

	// Watch triggers
	flag.DurationVar(&cfg.DebounceWindow, "debounce", cfg.DebounceWindow, "Quiet window for collapsing trigger bursts")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "File watcher poll interval")
	flag.StringVar(&cfg.NotifyURL, "notify-url", cfg.NotifyURL, "Dev server push notification channel (websocket URL)")

	// Readiness probes
	flag.IntVar(&cfg.DatabasePort, "db-port", cfg.DatabasePort, "Database service port (required for spec runs)")
	flag.IntVar(&cfg.DevServerPort, "devserver-port", cfg.DevServerPort, "Dev server port (required for spec runs)")
	flag.IntVar(&cfg.BrowserPort, "browser-port", cfg.BrowserPort, "Browser automation port (advisory)")
	flag.BoolVar(&cfg.SkipProbes, "skip-probes", cfg.SkipProbes, "Skip readiness probes")

	// Observability
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)

	flag.Parse()

	cfg.Paths = flag.Args()

	return cfg, nil
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(names []string) {
	flag.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(os.Stderr, "  -%s\n    \t%s", f.Name, f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" {
					fmt.Fprintf(os.Stderr, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(os.Stderr)
				return
			}
		}
	})
}
