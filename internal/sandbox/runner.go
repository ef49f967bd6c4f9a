package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/signalnine/tagteam/internal/pyast"
)

// DefaultTimeout bounds a run when Runner.Timeout is unset.
const DefaultTimeout = 30 * time.Second

const stderrTail = 2048

// Runner checks, writes and executes an assembled program with its hidden
// tests. It holds no per-run state and is safe for concurrent use.
type Runner struct {
	Checker pyast.CompileChecker
	Backend Backend
	// BaseDir is where per-run directories are created; os.TempDir when empty.
	BaseDir string
	Timeout time.Duration
	Logger  *zap.Logger
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Run executes tests against assembled and reports what happened. It never
// fails: every problem is folded into the returned report.
func (r *Runner) Run(ctx context.Context, assembled, tests string) *Report {
	return r.RunWithTimeout(ctx, assembled, tests, 0)
}

// RunWithTimeout is Run with a per-call timeout; zero uses r.Timeout.
func (r *Runner) RunWithTimeout(ctx context.Context, assembled, tests string, timeout time.Duration) *Report {
	log := r.logger()
	rep := &Report{Results: []CaseResult{}}
	combined := assembled + "\n\n" + tests

	checker := r.Checker
	if checker == nil {
		checker = pyast.TreeSitterChecker{}
	}
	if err := checker.Check(ctx, combined); err != nil {
		rep.Detail = err.Error()
		log.Debug("combined program does not compile", zap.Error(err))
		return rep
	}
	rep.SyntaxOK = true

	if timeout <= 0 {
		timeout = r.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dir, err := os.MkdirTemp(r.BaseDir, "tagteam-"+uuid.NewString()[:8]+"-")
	if err != nil {
		return r.degrade(rep, fmt.Sprintf("creating run dir: %v", err), nil)
	}
	defer os.RemoveAll(dir)

	if err := os.WriteFile(filepath.Join(dir, CandidateFile), []byte(combined), 0o644); err != nil {
		return r.degrade(rep, fmt.Sprintf("writing candidate: %v", err), nil)
	}
	if err := os.WriteFile(filepath.Join(dir, HarnessFile), harnessSource, 0o644); err != nil {
		return r.degrade(rep, fmt.Sprintf("writing harness: %v", err), nil)
	}

	backend := r.Backend
	if backend == nil {
		backend = &LocalBackend{}
	}
	ex, err := backend.Exec(ctx, dir, timeout)
	if err != nil {
		return r.degrade(rep, fmt.Sprintf("%s backend: %v", backend.Name(), err), nil)
	}
	rep.ExitCode = ex.ExitCode
	rep.Duration = ex.Duration
	rep.Stderr = tail(ex.Stderr, stderrTail)

	if ex.TimedOut {
		rep.TimedOut = true
		rep.Detail = fmt.Sprintf("timed out after %s", timeout)
		rep.zeroCounts()
		log.Warn("sandbox run timed out",
			zap.String("backend", backend.Name()),
			zap.Duration("timeout", timeout))
		return rep
	}

	sum, err := ParseSummary(string(ex.Stdout))
	if err != nil {
		return r.degrade(rep, err.Error(), ex.Stderr)
	}
	if sum.SyntaxError != "" {
		// The interpreter's compiler is the final word on syntax.
		rep.SyntaxOK = false
		rep.zeroCounts()
		rep.Detail = "syntax error: " + sum.SyntaxError
		log.Debug("combined program rejected by the interpreter",
			zap.String("backend", backend.Name()),
			zap.String("error", sum.SyntaxError))
		return rep
	}
	rep.Total = sum.Total
	rep.Passed = sum.Passed
	rep.Failed = sum.Failed
	rep.Errored = sum.Errored
	rep.Skipped = sum.Skipped
	rep.Results = sum.Results
	log.Debug("sandbox run finished",
		zap.String("backend", backend.Name()),
		zap.Int("total", rep.Total),
		zap.Int("passed", rep.Passed),
		zap.Int("exit_code", rep.ExitCode),
		zap.Duration("duration", rep.Duration))
	return rep
}

func (r *Runner) degrade(rep *Report, reason string, stderr []byte) *Report {
	rep.ParseError = true
	rep.zeroCounts()
	rep.Detail = reason
	if len(stderr) > 0 {
		rep.Detail += ": " + tail(stderr, stderrTail)
	}
	r.logger().Warn("sandbox run degraded", zap.String("reason", reason), zap.Int("exit_code", rep.ExitCode))
	return rep
}
