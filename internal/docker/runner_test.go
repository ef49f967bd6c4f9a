package docker_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalnine/tagteam/internal/docker"
)

const testImage = "python:3.12-slim"

func requireDocker(t *testing.T) {
	t.Helper()
	if os.Getenv("TAGTEAM_DOCKER_TESTS") == "" {
		t.Skip("set TAGTEAM_DOCKER_TESTS=1 to run Docker tests")
	}
}

func TestRunContainer(t *testing.T) {
	requireDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	workDir := t.TempDir()
	os.WriteFile(filepath.Join(workDir, "hello.py"), []byte("print('hello from', __name__)\n"), 0o644)

	result, err := docker.RunContainer(ctx, &docker.RunOpts{
		Image:   testImage,
		Command: []string{"python3", "/workspace/hello.py"},
		WorkDir: workDir,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code: got %d, want 0", result.ExitCode)
	}
	if result.TimedOut {
		t.Error("unexpected timeout")
	}
	if !strings.Contains(string(result.Logs), "hello from __main__") {
		t.Errorf("logs: got %q", result.Logs)
	}
}

func TestRunContainerNetworkDisabled(t *testing.T) {
	requireDocker(t)
	workDir := t.TempDir()
	script := "import socket\ntry:\n    socket.create_connection(('1.1.1.1', 53), timeout=2)\n    print('online')\nexcept OSError:\n    print('offline')\n"
	os.WriteFile(filepath.Join(workDir, "net.py"), []byte(script), 0o644)

	result, err := docker.RunContainer(context.Background(), &docker.RunOpts{
		Image:   testImage,
		Command: []string{"python3", "/workspace/net.py"},
		WorkDir: workDir,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if !strings.Contains(string(result.Logs), "offline") {
		t.Errorf("expected no network, logs: %q", result.Logs)
	}
}

func TestRunContainerTimeout(t *testing.T) {
	requireDocker(t)
	ctx := context.Background()
	workDir := t.TempDir()

	result, err := docker.RunContainer(ctx, &docker.RunOpts{
		Image:   testImage,
		Command: []string{"python3", "-c", "while True: pass"},
		WorkDir: workDir,
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if !result.TimedOut {
		t.Error("expected timeout")
	}
	if result.ExitCode != 124 {
		t.Errorf("exit code: got %d, want 124", result.ExitCode)
	}
}

func TestRunContainerCrash(t *testing.T) {
	requireDocker(t)
	ctx := context.Background()
	workDir := t.TempDir()

	result, err := docker.RunContainer(ctx, &docker.RunOpts{
		Image:   testImage,
		Command: []string{"python3", "-c", "raise SystemExit(3)"},
		WorkDir: workDir,
		Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("exit code: got %d, want 3", result.ExitCode)
	}
}
