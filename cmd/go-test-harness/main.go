// Package main provides the go-test-harness CLI entry point.
//
// go-test-harness runs a project's test categories through an ordered
// output multiplexer: raw test output is merged onto stdout in fixed
// category order while the categories execute concurrently. In watch
// mode it rebuilds and re-runs on file changes and dev-server change
// notifications.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/harnesslab/go-test-harness/internal/config"
	"github.com/harnesslab/go-test-harness/internal/logging"
	"github.com/harnesslab/go-test-harness/internal/orchestrator"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-test-harness
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-test-harness %s\n", version)
			return 0
		}
	}

	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	logger := logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	logging.SetDefault(logger)

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	logger.Info("starting",
		"version", version,
		"watch", cfg.Watch,
		"paths", cfg.Paths,
		"metrics_addr", cfg.MetricsAddr,
	)

	orch, err := orchestrator.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := orch.Run(context.Background()); err != nil {
		logger.Error("orchestrator_failed", "error", err)
		return 1
	}

	if !orch.Passed() {
		return 1
	}
	return 0
}
