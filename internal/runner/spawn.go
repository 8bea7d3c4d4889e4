// Package runner turns run categories into child-process invocations and
// feeds their output into the multiplexer.
package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
)

// Process is a spawned child. Stdout and Stderr are byte streams; Wait
// fires exactly once per process and returns *exec.ExitError semantics.
type Process interface {
	Stdout() io.Reader
	Stderr() io.Reader
	Wait() error
}

// Spawner abstracts process creation for testability.
type Spawner interface {
	Spawn(ctx context.Context, name string, args ...string) (Process, error)
}

// ExecSpawner implements Spawner using os/exec.
type ExecSpawner struct {
	// Env is extra environment appended to the parent's, e.g. the
	// published test-file list.
	Env []string
}

// NewExecSpawner creates a Spawner with the given extra environment.
func NewExecSpawner(env []string) *ExecSpawner {
	return &ExecSpawner{Env: env}
}

// Spawn starts the command with piped stdout and stderr.
func (s *ExecSpawner) Spawn(ctx context.Context, name string, args ...string) (Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), s.Env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdout.Close()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return nil, err
	}

	return &execProcess{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }
func (p *execProcess) Wait() error       { return p.cmd.Wait() }

// ExitCode extracts the exit code from a Wait() error.
// Signal exits map to 128 + signal number.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	return 1
}
