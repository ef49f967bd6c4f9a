package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/signalnine/tagteam/internal/assemble"
	"github.com/signalnine/tagteam/internal/extract"
	"github.com/signalnine/tagteam/internal/metrics"
	"github.com/signalnine/tagteam/internal/reward"
	"github.com/signalnine/tagteam/internal/sandbox"
	"github.com/signalnine/tagteam/internal/selection"
)

// Input is one evaluation request.
type Input struct {
	Skeleton  string
	ClassName string
	// Required is derived from the skeleton's stub methods when empty.
	Required []string
	// Outputs holds one raw response per agent.
	Outputs []string
	// Assignment maps methods to owning agents; empty means any agent may
	// supply any method.
	Assignment map[string]int
	Tests      string
	// Timeout overrides the sandbox timeout when positive.
	Timeout time.Duration
}

// Evaluation is the full outcome of one evaluation. The embedded report
// fields and Reward form the public result; the rest is bookkeeping.
type Evaluation struct {
	sandbox.Report
	Reward    float64          `json:"reward"`
	Breakdown reward.Breakdown `json:"reward_breakdown"`

	Required        []string             `json:"required_methods"`
	RequiredCount   int                  `json:"required_count"`
	ResolvedCount   int                  `json:"resolved_count"`
	OverlapCount    int                  `json:"overlap_count"`
	ResolvedMethods []string             `json:"resolved_methods"`
	Gaps            []assemble.Gap       `json:"gaps,omitempty"`
	Decisions       []selection.Decision `json:"decisions"`
	Assembled       string               `json:"assembled_source"`
	Elapsed         time.Duration        `json:"elapsed_ns"`
}

// Evaluator runs extract, select, assemble, run and score. The zero value
// is usable; it shares no mutable state between calls except the
// Selector's guarded random source.
type Evaluator struct {
	Selector *selection.Selector
	Sandbox  *sandbox.Runner
	Weights  reward.Weights
	Logger   *zap.Logger
	Metrics  metrics.Recorder
}

func (e *Evaluator) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e *Evaluator) recorder() metrics.Recorder {
	if e.Metrics == nil {
		return metrics.Nop{}
	}
	return e.Metrics
}

// stage runs fn, turning a panic into a logged failure.
func (e *Evaluator) stage(name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger().Error("pipeline stage panicked", zap.String("stage", name), zap.String("panic", fmt.Sprint(r)))
			e.recorder().StagePanic(name)
			ok = false
		}
	}()
	fn()
	return true
}

// Evaluate never fails. Whatever goes wrong degrades the inputs of the
// scorer, so the returned evaluation always carries a defined reward.
func (e *Evaluator) Evaluate(ctx context.Context, in *Input) *Evaluation {
	start := time.Now()
	log := e.logger()
	rec := e.recorder()
	if in == nil {
		in = &Input{}
	}

	required := unique(in.Required)
	if len(required) == 0 {
		e.stage("derive", func() { required = assemble.Required(in.Skeleton, in.ClassName) })
	}
	if required == nil {
		required = []string{}
	}

	var maps []extract.Candidates
	e.stage("extract", func() { maps = extract.ExtractAll(in.Outputs, required) })

	sel := e.Selector
	if sel == nil {
		sel = &selection.Selector{Logger: log}
	}
	res := &selection.Resolution{Methods: map[string]string{}}
	e.stage("select", func() { res = sel.Select(ctx, maps, required, in.Assignment) })
	for _, d := range res.Decisions {
		rec.Candidates(len(d.Valid), d.Rejected())
	}

	assembled, gaps := in.Skeleton, []assemble.Gap(nil)
	e.stage("assemble", func() { assembled, gaps = assemble.Assemble(in.Skeleton, in.ClassName, res.Methods) })
	for _, g := range gaps {
		rec.AssemblyGap(g.Reason)
		log.Warn("resolved method not placed", zap.String("method", g.Method), zap.String("reason", g.Reason))
	}

	sb := e.Sandbox
	if sb == nil {
		sb = &sandbox.Runner{Logger: log}
	}
	var rep *sandbox.Report
	ok := e.stage("run", func() { rep = sb.RunWithTimeout(ctx, assembled, in.Tests, in.Timeout) })
	if !ok || rep == nil {
		rep = &sandbox.Report{ParseError: true, Results: []sandbox.CaseResult{}, Detail: "sandbox run aborted"}
	} else if rep.Duration > 0 {
		backend := "local"
		if sb.Backend != nil {
			backend = sb.Backend.Name()
		}
		rec.SandboxRun(backend, rep.Duration)
	}

	resolved := make([]string, 0, len(res.Methods))
	for _, name := range required {
		if _, ok := res.Methods[name]; ok {
			resolved = append(resolved, name)
		}
	}

	breakdown, err := reward.Score(e.Weights, len(required), len(resolved), res.Overlap, rep)
	if err != nil {
		log.Error("scoring failed", zap.Error(err))
		breakdown = reward.Breakdown{}
	}

	ev := &Evaluation{
		Report:          *rep,
		Reward:          breakdown.Total,
		Breakdown:       breakdown,
		Required:        required,
		RequiredCount:   len(required),
		ResolvedCount:   len(resolved),
		OverlapCount:    res.Overlap,
		ResolvedMethods: resolved,
		Gaps:            gaps,
		Decisions:       res.Decisions,
		Assembled:       assembled,
		Elapsed:         time.Since(start),
	}
	rec.Evaluation(rep.Status(), ev.Reward)
	log.Info("evaluation finished",
		zap.String("class", in.ClassName),
		zap.String("status", rep.Status()),
		zap.Int("required", ev.RequiredCount),
		zap.Int("resolved", ev.ResolvedCount),
		zap.Int("overlap", ev.OverlapCount),
		zap.Int("passed", rep.Passed),
		zap.Int("total", rep.Total),
		zap.Float64("reward", ev.Reward),
		zap.Duration("elapsed", ev.Elapsed))
	return ev
}

// Rescore recomputes the reward of a stored evaluation under w.
func (ev *Evaluation) Rescore(w reward.Weights) error {
	b, err := reward.Score(w, ev.RequiredCount, ev.ResolvedCount, ev.OverlapCount, &ev.Report)
	if err != nil {
		return err
	}
	ev.Breakdown, ev.Reward = b, b.Total
	return nil
}

// EvaluateAll evaluates inputs with at most maxWorkers in flight. Results
// are in input order.
func (e *Evaluator) EvaluateAll(ctx context.Context, maxWorkers int, inputs []*Input) []*Evaluation {
	out := make([]*Evaluation, len(inputs))
	jobs := make([]Job, len(inputs))
	for i, in := range inputs {
		jobs[i] = func(ctx context.Context) error {
			out[i] = e.Evaluate(ctx, in)
			return nil
		}
	}
	RunPool(ctx, maxWorkers, jobs)
	return out
}

func unique(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
