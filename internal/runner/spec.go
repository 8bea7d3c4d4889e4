package runner

import (
	"context"
	"io"
	"log/slog"

	"github.com/harnesslab/go-test-harness/internal/mux"
)

// SpecRunner runs the interpreted spec category: one child process with
// the resolved file list as arguments.
type SpecRunner struct {
	command string
	files   []string
	spawner Spawner
	diag    io.Writer
	logger  *slog.Logger
}

// NewSpecRunner creates a runner for the interpreted spec category.
func NewSpecRunner(command string, files []string, spawner Spawner, diag io.Writer, logger *slog.Logger) *SpecRunner {
	return &SpecRunner{
		command: command,
		files:   files,
		spawner: spawner,
		diag:    diag,
		logger:  logger,
	}
}

// Empty reports whether the runner has no files and is a no-op.
func (r *SpecRunner) Empty() bool {
	return len(r.files) == 0
}

// Run spawns the spec interpreter and completes when the child exits,
// whatever its exit code. The segment always reaches completion, even on
// a spawn failure, so multiplexer ordering is never stalled.
func (r *SpecRunner) Run(ctx context.Context, seg *mux.Segment) int {
	if r.Empty() {
		if seg != nil {
			seg.Close()
		}
		return 0
	}

	proc, err := r.spawner.Spawn(ctx, r.command, r.files...)
	if err != nil {
		r.logger.Error("spawn_failed", "category", "spec", "error", err)
		seg.Close()
		return 1
	}
	forward(proc, seg, r.diag)

	code := ExitCode(proc.Wait())
	seg.Close()

	if code != 0 {
		r.logger.Warn("tests_failed", "category", "spec", "exit_code", code)
	}
	return code
}
