package sandbox

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/signalnine/tagteam/internal/docker"
)

// DockerBackend runs the harness in a throwaway container with the work
// directory bind-mounted at /workspace and networking disabled.
type DockerBackend struct {
	Image       string
	Python      string
	CPULimit    float64
	MemoryLimit int64
}

func (b *DockerBackend) Name() string { return "docker" }

func (b *DockerBackend) Exec(ctx context.Context, dir string, timeout time.Duration) (*Execution, error) {
	python := b.Python
	if python == "" {
		python = "python3"
	}
	res, err := docker.RunContainer(ctx, &docker.RunOpts{
		Image:   b.Image,
		Command: []string{python, "-I", "/workspace/" + HarnessFile},
		WorkDir: dir,
		Env: map[string]string{
			"PYTHONDONTWRITEBYTECODE": "1",
			"PYTHONUNBUFFERED":        "1",
			"HOME":                    "/workspace",
		},
		Timeout:     timeout,
		CPULimit:    b.CPULimit,
		MemoryLimit: b.MemoryLimit,
		UserID:      fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
		MaxLogBytes: maxCapture,
	})
	if err != nil {
		return nil, fmt.Errorf("running %s container: %w", b.Image, err)
	}
	// With a TTY the streams are merged; the summary line is still the last
	// sentinel, so the combined log serves as both.
	return &Execution{
		Stdout:   res.Logs,
		Stderr:   res.Logs,
		ExitCode: res.ExitCode,
		TimedOut: res.TimedOut,
		Duration: res.Duration,
	}, nil
}
