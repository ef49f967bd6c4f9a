package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalnine/tagteam/internal/config"
	"github.com/signalnine/tagteam/internal/metrics"
	"github.com/signalnine/tagteam/internal/pyast"
	"github.com/signalnine/tagteam/internal/reward"
	"github.com/signalnine/tagteam/internal/runner"
	"github.com/signalnine/tagteam/internal/sandbox"
	"github.com/signalnine/tagteam/internal/selection"
)

func newBackend(sb config.Sandbox) sandbox.Backend {
	if sb.Backend == config.BackendDocker {
		return &sandbox.DockerBackend{
			Image:       sb.Image,
			Python:      sb.Python,
			CPULimit:    sb.CPULimit,
			MemoryLimit: sb.MemoryLimitMB << 20,
		}
	}
	return &sandbox.LocalBackend{Python: sb.Python}
}

func newEvaluator(sb config.Sandbox, w config.Reward, seed uint64) *runner.Evaluator {
	sel := &selection.Selector{Checker: pyast.TreeSitterChecker{}, Logger: logger}
	if seed != 0 {
		sel = selection.NewSeeded(seed, logger)
	}
	return &runner.Evaluator{
		Selector: sel,
		Sandbox: &sandbox.Runner{
			Checker: pyast.TreeSitterChecker{},
			Backend: newBackend(sb),
			BaseDir: sb.BaseDir,
			Timeout: time.Duration(sb.TimeoutSeconds) * time.Second,
			Logger:  logger,
		},
		Weights: reward.Weights{Coverage: w.Coverage, Tests: w.Tests},
		Logger:  logger,
		Metrics: metrics.Prometheus{},
	}
}

// sandboxFlags are the sandbox settings accepted on the command line.
type sandboxFlags struct {
	config.Sandbox
}

func (f *sandboxFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Backend, "backend", config.BackendLocal, "sandbox backend (local, docker)")
	cmd.Flags().StringVar(&f.Python, "python", "python3", "python interpreter")
	cmd.Flags().StringVar(&f.Image, "image", "", "container image for the docker backend")
	cmd.Flags().StringVar(&f.BaseDir, "base-dir", "", "parent directory for run directories")
}

// apply overrides dst with the flags given explicitly on cmd's command line.
func (f *sandboxFlags) apply(cmd *cobra.Command, dst *config.Sandbox) error {
	flags := cmd.Flags()
	if flags.Changed("backend") {
		dst.Backend = f.Backend
	}
	if flags.Changed("python") {
		dst.Python = f.Python
	}
	if flags.Changed("image") {
		dst.Image = f.Image
	}
	if flags.Changed("base-dir") {
		dst.BaseDir = f.BaseDir
	}
	return dst.ApplyDefaults()
}

// taskFlags select a task either from the config file (--task) or from
// individual files given on the command line.
type taskFlags struct {
	task     string
	skeleton string
	class    string
	tests    string
	required []string
	assign   []string
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.task, "task", "", "task id from the config file")
	cmd.Flags().StringVar(&f.skeleton, "skeleton", "", "skeleton source file")
	cmd.Flags().StringVar(&f.class, "class", "", "class to assemble")
	cmd.Flags().StringVar(&f.tests, "tests", "", "hidden unittest source file")
	cmd.Flags().StringSliceVar(&f.required, "required", nil, "required methods (default: the skeleton's stubs)")
	cmd.Flags().StringSliceVar(&f.assign, "assign", nil, "method=agent ownership, repeatable")
}

// fromConfig reports whether the task comes from the config file.
func (f *taskFlags) fromConfig() bool { return f.task != "" }

func (f *taskFlags) configTask(cfg *config.Config) (*config.Task, error) {
	for i := range cfg.Tasks {
		if cfg.Tasks[i].ID == f.task {
			return &cfg.Tasks[i], nil
		}
	}
	return nil, fmt.Errorf("task %q not found in %s", f.task, cfgFile)
}

// input builds an evaluation input from flags, reading one agent output
// per path in outputs.
func (f *taskFlags) input(outputs []string) (*runner.Input, error) {
	if f.skeleton == "" || f.class == "" {
		return nil, fmt.Errorf("either --task or both --skeleton and --class are required")
	}
	task := &config.Task{
		ID:        f.class,
		ClassName: f.class,
		Skeleton:  f.skeleton,
		Tests:     f.tests,
		Required:  f.required,
		Outputs:   outputs,
	}
	assignment, err := parseAssignment(f.assign, len(outputs))
	if err != nil {
		return nil, err
	}
	task.Assignment = assignment
	if task.Tests == "" {
		task.Tests = os.DevNull
	}
	return runner.LoadInput(task)
}

func parseAssignment(pairs []string, agents int) (map[string]int, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]int, len(pairs))
	for _, p := range pairs {
		method, idx, ok := strings.Cut(p, "=")
		if !ok || method == "" {
			return nil, fmt.Errorf("assignment %q: want method=agent", p)
		}
		n, err := strconv.Atoi(idx)
		if err != nil {
			return nil, fmt.Errorf("assignment %q: %w", p, err)
		}
		if n < 0 || (agents > 0 && n >= agents) {
			return nil, fmt.Errorf("assignment %q: agent index out of range", p)
		}
		out[method] = n
	}
	return out, nil
}
