package runner

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/harnesslab/go-test-harness/internal/mux"
)

// BuildConfig describes one build-based category to the build collaborator.
type BuildConfig struct {
	Category string   // category id
	Entries  []string // files to bundle
	OutFile  string   // produced test binary path
	Env      []string // extra environment for the bundling step
}

// Builder is the build collaborator boundary. Build runs one bundle pass;
// Watch rebuilds continuously and may invoke onComplete many times.
type Builder interface {
	Build(ctx context.Context, cfg BuildConfig) error
	Watch(ctx context.Context, cfg BuildConfig, interval time.Duration, onComplete func(error))
}

// BuildRunner runs a build-based test category: build, then spawn the
// produced binary and stream its stdout into an ordered segment. Stderr
// bypasses the multiplexer and goes straight to the diagnostic writer.
type BuildRunner struct {
	cfg     BuildConfig
	builder Builder
	spawner Spawner
	out     *mux.Mux
	diag    io.Writer
	logger  *slog.Logger
}

// NewBuildRunner creates a runner for one build-based category.
func NewBuildRunner(cfg BuildConfig, builder Builder, spawner Spawner, out *mux.Mux, diag io.Writer, logger *slog.Logger) *BuildRunner {
	return &BuildRunner{
		cfg:     cfg,
		builder: builder,
		spawner: spawner,
		out:     out,
		diag:    diag,
		logger:  logger,
	}
}

// RunOnce performs a single build+run cycle, filling the pre-reserved
// segment, and returns the test binary's exit code. A build failure is
// logged and the segment closed empty so ordering never stalls; it does
// not abort other categories.
func (r *BuildRunner) RunOnce(ctx context.Context, seg *mux.Segment) int {
	if err := r.builder.Build(ctx, r.cfg); err != nil {
		r.logger.Error("build_failed", "category", r.cfg.Category, "error", err)
		seg.Close()
		return 1
	}
	return r.runBinary(ctx, seg)
}

// RunWatch starts the continuous build. Only the first successful build
// fills the pre-reserved segment; every later build submits a fresh one.
// Build failures are logged and skipped; the next successful build
// resumes normal operation.
func (r *BuildRunner) RunWatch(ctx context.Context, first *mux.Segment, interval time.Duration) {
	var firstOnce sync.Once
	r.builder.Watch(ctx, r.cfg, interval, func(err error) {
		if err != nil {
			r.logger.Error("build_failed", "category", r.cfg.Category, "error", err)
			return
		}

		seg := (*mux.Segment)(nil)
		firstOnce.Do(func() { seg = first })
		if seg == nil {
			seg = r.out.Reserve()
		}
		r.runBinary(ctx, seg)
	})
}

// runBinary spawns the built test binary, forwards its streams, and
// returns its exit code.
func (r *BuildRunner) runBinary(ctx context.Context, seg *mux.Segment) int {
	proc, err := r.spawner.Spawn(ctx, r.cfg.OutFile)
	if err != nil {
		r.logger.Error("spawn_failed", "category", r.cfg.Category, "error", err)
		seg.Close()
		return 1
	}
	forward(proc, seg, r.diag)

	code := ExitCode(proc.Wait())
	if code != 0 {
		r.logger.Warn("tests_failed", "category", r.cfg.Category, "exit_code", code)
	}
	seg.Close()
	return code
}

// forward drains the process's stdout into the segment and stderr into
// the diagnostic writer, returning when both streams hit EOF. Must
// complete before Wait is called on the process.
func forward(proc Process, seg *mux.Segment, diag io.Writer) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		io.Copy(seg, proc.Stdout())
	}()
	go func() {
		defer wg.Done()
		io.Copy(diag, proc.Stderr())
	}()
	wg.Wait()
}
