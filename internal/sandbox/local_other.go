//go:build !unix

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// LocalBackend runs the harness with a host Python interpreter. Without
// process groups only the interpreter itself is killed on timeout.
type LocalBackend struct {
	Python string
	Env    []string
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Exec(ctx context.Context, dir string, timeout time.Duration) (*Execution, error) {
	python := b.Python
	if python == "" {
		python = "python"
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, python, "-I", HarnessFile)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "PYTHONDONTWRITEBYTECODE=1", "PYTHONUNBUFFERED=1")
	cmd.Env = append(cmd.Env, b.Env...)
	cmd.WaitDelay = 2 * time.Second

	stdout := &cappedBuffer{limit: maxCapture}
	stderr := &cappedBuffer{limit: maxCapture}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", python, err)
	}
	err := cmd.Wait()

	ex := &Execution{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		ex.TimedOut = true
		ex.ExitCode = 124
		return ex, nil
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		ex.ExitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrWaitDelay):
	default:
		return nil, fmt.Errorf("waiting for %s: %w", python, err)
	}
	return ex, nil
}
