// Package orchestrator wires discovery, readiness probes, the ordered
// output multiplexer, the category runners, and the watch-mode trigger
// pipeline into a single run loop.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/harnesslab/go-test-harness/internal/config"
	"github.com/harnesslab/go-test-harness/internal/discover"
	"github.com/harnesslab/go-test-harness/internal/metrics"
	"github.com/harnesslab/go-test-harness/internal/mux"
	"github.com/harnesslab/go-test-harness/internal/probe"
	"github.com/harnesslab/go-test-harness/internal/report"
	"github.com/harnesslab/go-test-harness/internal/runner"
	"github.com/harnesslab/go-test-harness/internal/watch"
)

// syncWriter serializes the diagnostic writer. Child stderr forwarding,
// probe reports, and the summary all share it from different goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

// Orchestrator owns the lifecycle of one harness invocation. Raw test
// output is merged through the multiplexer into the sink (stdout); all
// diagnostics, probe reports, and the final summary go to diag (stderr).
type Orchestrator struct {
	cfg    *config.Config
	logger *slog.Logger

	set     *discover.Set
	out     *mux.Mux
	diag    io.Writer
	spawner runner.Spawner
	builder runner.Builder

	services      []probe.Service
	collector     *metrics.Collector
	metricsServer *metrics.Server
	summary       *report.Summary
}

// New discovers the test set under the current directory and prepares
// an orchestrator bound to os.Stdout/os.Stderr.
func New(cfg *config.Config, logger *slog.Logger) (*Orchestrator, error) {
	return newOrchestrator(cfg, logger, ".", os.Stdout, os.Stderr)
}

func newOrchestrator(cfg *config.Config, logger *slog.Logger, dir string, sink, diag io.Writer) (*Orchestrator, error) {
	set, err := discover.Discover(dir, cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}

	env := []string{discover.EnvTestFiles + "=" + set.TestFilesEnv()}

	o := &Orchestrator{
		cfg:       cfg,
		logger:    logger,
		set:       set,
		out:       mux.New(sink),
		diag:      &syncWriter{w: diag},
		spawner:   runner.NewExecSpawner(env),
		builder:   &runner.CommandBuilder{Command: cfg.BuildCommand, Logger: logger},
		collector: metrics.NewCollector(),
		summary:   report.NewSummary(),
		services: []probe.Service{
			{Name: "database", Port: cfg.DatabasePort, Required: true,
				Hint: "start the database before running specs"},
			{Name: "devserver", Port: cfg.DevServerPort, Required: true,
				Hint: "start the dev server; it also feeds the change notification channel"},
			{Name: "browser", Port: cfg.BrowserPort, Required: false,
				Hint: "start the browser automation service for full spec coverage"},
		},
	}

	if cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServer(cfg.MetricsAddr, logger)
	}
	return o, nil
}

// Run executes a single cycle, or the watch loop when watch mode is
// enabled. The returned error is nil on clean shutdown; test failures
// are reported through the summary, not the error.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			o.metricsServer.Shutdown(shutCtx)
		}()
	}

	if o.cfg.Watch {
		return o.runWatch(ctx)
	}
	return o.runOnce(ctx)
}

// runOnce runs every non-empty category exactly once. Segments are
// reserved in category order before any runner starts, so the merged
// stream order is fixed no matter how production interleaves.
func (o *Orchestrator) runOnce(ctx context.Context) error {
	start := time.Now()
	o.collector.RunStarted()

	specReady := o.checkReadiness(ctx)

	results := make([]report.CategoryResult, len(o.set.Categories))
	var wg sync.WaitGroup
	for i, cat := range o.set.Categories {
		results[i] = report.CategoryResult{ID: cat.ID, Files: len(cat.Files)}

		if len(cat.Files) == 0 {
			o.logger.Info("category_skipped", "category", cat.ID, "reason", "no_files")
			results[i].Skipped = true
			continue
		}

		if !cat.Build && !specReady {
			o.logger.Error("category_blocked",
				"category", cat.ID,
				"reason", "required_service_unreachable")
			results[i].ExitCode = 1
			continue
		}

		seg := o.out.Reserve()
		wg.Add(1)
		if cat.Build {
			r := runner.NewBuildRunner(o.buildConfig(cat), o.builder, o.spawner, o.out, o.diag, o.logger)
			go func(i int) {
				defer wg.Done()
				results[i].ExitCode = r.RunOnce(ctx, seg)
			}(i)
		} else {
			r := runner.NewSpecRunner(o.cfg.SpecCommand, cat.Files, o.spawner, o.diag, o.logger)
			go func(i int) {
				defer wg.Done()
				results[i].ExitCode = r.Run(ctx, seg)
			}(i)
		}
	}

	wg.Wait()
	o.out.Wait()

	o.finishCycle(start, results)
	o.summary.Render(o.diag)
	return nil
}

// runWatch starts continuous builds for the build-based categories and
// drives spec re-runs from file and dev-server triggers through the
// debouncer and the re-entrancy scheduler. A broken notification
// transport is fatal; everything else keeps the loop alive.
func (o *Orchestrator) runWatch(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for _, cat := range o.set.Categories {
		if !cat.Build {
			continue
		}
		if len(cat.Files) == 0 {
			o.logger.Info("category_skipped", "category", cat.ID, "reason", "no_files")
			continue
		}
		first := o.out.Reserve()
		r := runner.NewBuildRunner(o.buildConfig(cat), o.builder, o.spawner, o.out, o.diag, o.logger)
		r.RunWatch(ctx, first, o.cfg.BuildInterval)
	}

	sched := watch.NewScheduler(func() { o.runSpecCycle(ctx) }, o.logger)
	sched.OnTransition = func(_, newState watch.State) {
		o.collector.SchedulerState(int(newState))
	}
	deb := watch.NewDebouncer(o.cfg.DebounceWindow, sched.Trigger)
	defer deb.Stop()

	events := make(chan watch.Event, 16)

	fw := watch.NewFileWatcher(o.set.AllFiles(), o.cfg.PollInterval, o.logger)
	go fw.Run(ctx, events)

	notifyErr := make(chan error, 1)
	notifier := watch.NewNotifier(o.cfg.NotifyURL, o.logger)
	go func() { notifyErr <- notifier.Run(ctx, events) }()

	o.logger.Info("watch_started",
		"files", len(o.set.AllFiles()),
		"notify_url", o.cfg.NotifyURL,
		"debounce", o.cfg.DebounceWindow)

	// Initial run; later runs come only from triggers.
	sched.Trigger()

	for {
		select {
		case ev := <-events:
			o.collector.TriggerReceived(ev.Source)
			o.logger.Debug("trigger_received", "source", ev.Source, "payload", ev.Payload)
			deb.Trigger()

		case err := <-notifyErr:
			if ctx.Err() != nil {
				return nil
			}
			cancel()
			sched.Wait()
			return fmt.Errorf("change notification transport: %w", err)

		case sig := <-sigCh:
			o.logger.Info("received_signal", "signal", sig.String())
			cancel()
			// Draining the scheduler closes any in-flight segment;
			// waiting on the mux could hang on a build slot that
			// never saw a successful build.
			sched.Wait()
			o.summary.Render(o.diag)
			return nil

		case <-ctx.Done():
			sched.Wait()
			return nil
		}
	}
}

// runSpecCycle is one scheduled spec run inside watch mode.
func (o *Orchestrator) runSpecCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	cat := o.set.ByID(discover.CategorySpec)
	if cat == nil || len(cat.Files) == 0 {
		o.logger.Info("category_skipped", "category", discover.CategorySpec, "reason", "no_files")
		return
	}

	start := time.Now()
	o.collector.RunStarted()

	code := 1
	if o.checkReadiness(ctx) {
		seg := o.out.Reserve()
		r := runner.NewSpecRunner(o.cfg.SpecCommand, cat.Files, o.spawner, o.diag, o.logger)
		code = r.Run(ctx, seg)
	} else {
		o.logger.Error("category_blocked",
			"category", cat.ID,
			"reason", "required_service_unreachable")
	}

	o.finishCycle(start, []report.CategoryResult{
		{ID: cat.ID, Files: len(cat.Files), ExitCode: code},
	})
}

// checkReadiness probes the dependent services and reports unreachable
// ones, with remediation hints, to the diagnostic writer. It returns
// true when every required service answered.
func (o *Orchestrator) checkReadiness(ctx context.Context) bool {
	if o.cfg.SkipProbes {
		return true
	}

	rep := probe.RunAll(ctx, o.services)
	for _, res := range rep.Results {
		o.collector.ProbeResult(res.Name, res.Reachable)
		o.logger.Info("probe_result",
			"service", res.Name,
			"port", res.Port,
			"reachable", res.Reachable,
			"required", res.Required)
	}

	for _, res := range rep.Unreachable() {
		fmt.Fprintln(o.diag, res.String())
		if res.Hint != "" {
			fmt.Fprintf(o.diag, "    Fix: %s\n", res.Hint)
		}
	}
	return rep.RequiredPassed()
}

// finishCycle folds one completed cycle into the summary and metrics.
func (o *Orchestrator) finishCycle(start time.Time, results []report.CategoryResult) {
	elapsed := time.Since(start)

	worst := 0
	for _, res := range results {
		if res.ExitCode != 0 {
			worst = res.ExitCode
		}
	}
	o.collector.RunCompleted(elapsed, worst)

	reserved, _, bytes := o.out.Stats()
	o.collector.MuxStats(reserved, bytes)

	o.summary.SetCategories(results)
	o.summary.RecordCycle(elapsed)

	o.logger.Info("cycle_complete",
		"duration", elapsed,
		"exit_code", worst,
		"segments", reserved,
		"sink_bytes", bytes)
}

// Passed reports whether every category in the latest cycle passed or
// was skipped. The binary derives its exit code from this.
func (o *Orchestrator) Passed() bool {
	return o.summary.Passed()
}

func (o *Orchestrator) buildConfig(cat discover.Category) runner.BuildConfig {
	return runner.BuildConfig{
		Category: cat.ID,
		Entries:  cat.Files,
		OutFile:  filepath.Join(o.cfg.BuildOutDir, cat.ID+".bundle.js"),
		Env:      []string{discover.EnvTestFiles + "=" + o.set.TestFilesEnv()},
	}
}
