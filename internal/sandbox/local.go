//go:build unix

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// LocalBackend runs the harness with a host Python interpreter in its own
// process group, so a timeout takes down anything the tests spawned.
type LocalBackend struct {
	// Python is the interpreter to run; "python3" when empty.
	Python string
	// Env is appended to the parent's environment.
	Env []string
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Exec(ctx context.Context, dir string, timeout time.Duration) (*Execution, error) {
	python := b.Python
	if python == "" {
		python = "python3"
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, python, "-I", HarnessFile)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "PYTHONDONTWRITEBYTECODE=1", "PYTHONUNBUFFERED=1", "HOME="+dir)
	cmd.Env = append(cmd.Env, b.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killGroup(cmd.Process.Pid)
	}
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
	// Reap stragglers the tests left running even on a clean exit.
	_ = killGroup(cmd.Process.Pid)

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

func killGroup(pid int) error {
	err := unix.Kill(-pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
