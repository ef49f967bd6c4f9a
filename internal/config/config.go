package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Tasks   []Task  `yaml:"tasks"`
	Trials  int     `yaml:"trials"`
	Seed    uint64  `yaml:"seed"`
	Sandbox Sandbox `yaml:"sandbox"`
	Reward  Reward  `yaml:"reward"`
	Results Results `yaml:"results"`
	Logging Logging `yaml:"logging"`
}

// Task is one assembly problem. File paths are resolved against the
// directory of the config file.
type Task struct {
	ID        string `yaml:"id"`
	Category  string `yaml:"category"`
	ClassName string `yaml:"class_name"`
	Skeleton  string `yaml:"skeleton"`
	Tests     string `yaml:"tests"`
	// Required lists the methods to fill in; derived from the skeleton's
	// stubs when empty.
	Required []string `yaml:"required"`
	// Outputs holds one file per agent.
	Outputs []string `yaml:"outputs"`
	// Assignment maps a method to the index of the agent that owns it.
	Assignment     map[string]int `yaml:"assignment"`
	TimeoutSeconds int            `yaml:"timeout_seconds"`
}

type Sandbox struct {
	Backend        string  `yaml:"backend"`
	Python         string  `yaml:"python"`
	Image          string  `yaml:"image"`
	BaseDir        string  `yaml:"base_dir"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	CPULimit       float64 `yaml:"cpu_limit"`
	MemoryLimitMB  int64   `yaml:"memory_limit_mb"`
}

type Reward struct {
	Coverage float64 `yaml:"coverage"`
	Tests    float64 `yaml:"tests"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

type Logging struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

const (
	BackendLocal  = "local"
	BackendDocker = "docker"

	DefaultImage          = "python:3.12-slim"
	DefaultTimeoutSeconds = 30
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	return &cfg, nil
}

func validate(cfg *Config) error {
	if len(cfg.Tasks) == 0 {
		return fmt.Errorf("no tasks defined")
	}
	ids := map[string]bool{}
	for i := range cfg.Tasks {
		t := &cfg.Tasks[i]
		if t.ID == "" {
			return fmt.Errorf("task %d: id is required", i)
		}
		if ids[t.ID] {
			return fmt.Errorf("task %q: duplicate id", t.ID)
		}
		ids[t.ID] = true
		if t.ClassName == "" {
			return fmt.Errorf("task %q: class_name is required", t.ID)
		}
		if t.Skeleton == "" {
			return fmt.Errorf("task %q: skeleton is required", t.ID)
		}
		if t.Tests == "" {
			return fmt.Errorf("task %q: tests is required", t.ID)
		}
		if len(t.Outputs) == 0 {
			return fmt.Errorf("task %q: at least one output is required", t.ID)
		}
		for method, owner := range t.Assignment {
			if owner < 0 || owner >= len(t.Outputs) {
				return fmt.Errorf("task %q: method %q assigned to agent %d, have %d outputs", t.ID, method, owner, len(t.Outputs))
			}
		}
		if t.TimeoutSeconds < 0 {
			return fmt.Errorf("task %q: timeout_seconds must not be negative", t.ID)
		}
	}
	if cfg.Trials < 1 {
		return fmt.Errorf("trials must be at least 1")
	}

	if err := cfg.Sandbox.ApplyDefaults(); err != nil {
		return err
	}

	if cfg.Reward.Coverage < 0 || cfg.Reward.Tests < 0 {
		return fmt.Errorf("reward weights must not be negative")
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if _, err := zapcore.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging level: %w", err)
	}
	return nil
}

// ApplyDefaults fills unset sandbox fields and rejects invalid ones.
func (sb *Sandbox) ApplyDefaults() error {
	switch sb.Backend {
	case "":
		sb.Backend = BackendLocal
	case BackendLocal, BackendDocker:
	default:
		return fmt.Errorf("sandbox backend %q: must be %s or %s", sb.Backend, BackendLocal, BackendDocker)
	}
	if sb.Python == "" {
		sb.Python = "python3"
	}
	if sb.Backend == BackendDocker && sb.Image == "" {
		sb.Image = DefaultImage
	}
	if sb.TimeoutSeconds == 0 {
		sb.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if sb.TimeoutSeconds < 0 || sb.CPULimit < 0 || sb.MemoryLimitMB < 0 {
		return fmt.Errorf("sandbox limits must not be negative")
	}
	return nil
}

func (cfg *Config) resolvePaths(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i := range cfg.Tasks {
		t := &cfg.Tasks[i]
		t.Skeleton = abs(t.Skeleton)
		t.Tests = abs(t.Tests)
		for j := range t.Outputs {
			t.Outputs[j] = abs(t.Outputs[j])
		}
	}
}
