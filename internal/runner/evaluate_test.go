package runner_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/tagteam/internal/config"
	"github.com/signalnine/tagteam/internal/metrics"
	"github.com/signalnine/tagteam/internal/reward"
	"github.com/signalnine/tagteam/internal/runner"
	"github.com/signalnine/tagteam/internal/sandbox"
	"github.com/signalnine/tagteam/internal/selection"
)

// stubBackend reports every test as passed without running anything.
type stubBackend struct {
	total  int
	passed int
	calls  atomic.Int32
	panics bool
}

func (b *stubBackend) Name() string { return "stub" }

func (b *stubBackend) Exec(context.Context, string, time.Duration) (*sandbox.Execution, error) {
	b.calls.Add(1)
	if b.panics {
		panic("backend exploded")
	}
	var results []string
	for i := 0; i < b.total; i++ {
		outcome := "failed"
		if i < b.passed {
			outcome = "passed"
		}
		results = append(results, fmt.Sprintf(`{"id":"t%d","outcome":%q}`, i, outcome))
	}
	line := fmt.Sprintf(`%s {"total":%d,"passed":%d,"failed":%d,"errored":0,"skipped":0,"results":[%s]}`,
		sandbox.Sentinel, b.total, b.passed, b.total-b.passed, strings.Join(results, ","))
	return &sandbox.Execution{Stdout: []byte(line + "\n"), Duration: time.Millisecond}, nil
}

func shapesInput(t *testing.T) *runner.Input {
	t.Helper()
	cfg, err := config.Load("../../testdata/full.yaml")
	require.NoError(t, err)
	in, err := runner.LoadInput(&cfg.Tasks[0])
	require.NoError(t, err)
	return in
}

func counterInput(t *testing.T) *runner.Input {
	t.Helper()
	cfg, err := config.Load("../../testdata/full.yaml")
	require.NoError(t, err)
	in, err := runner.LoadInput(&cfg.Tasks[1])
	require.NoError(t, err)
	return in
}

func newEvaluator(b sandbox.Backend) *runner.Evaluator {
	return &runner.Evaluator{
		Selector: selection.NewSeeded(7, nil),
		Sandbox:  &sandbox.Runner{Backend: b},
		Weights:  reward.DefaultWeights,
	}
}

func TestEvaluateSelfSelection(t *testing.T) {
	b := &stubBackend{total: 5, passed: 5}
	ev := newEvaluator(b).Evaluate(context.Background(), shapesInput(t))

	assert.Equal(t, []string{"area", "perimeter", "diagonal", "scale"}, ev.Required)
	assert.Equal(t, 4, ev.ResolvedCount)
	assert.Equal(t, 1, ev.OverlapCount)
	assert.True(t, ev.SyntaxOK)
	assert.Equal(t, 5, ev.Passed)
	assert.InDelta(t, 2.0, ev.Breakdown.Coverage, 1e-9)
	assert.InDelta(t, 4.0, ev.Breakdown.Tests, 1e-9)
	assert.InDelta(t, -0.25, ev.Breakdown.Overlap, 1e-9)
	assert.InDelta(t, 5.75, ev.Reward, 1e-9)
	assert.Contains(t, ev.Assembled, "math.hypot(self.width, self.height)")
	assert.NotContains(t, ev.Assembled, "return self.width + self.height")
	assert.Equal(t, int32(1), b.calls.Load())
}

func TestEvaluateAssignment(t *testing.T) {
	b := &stubBackend{total: 3, passed: 3}
	ev := newEvaluator(b).Evaluate(context.Background(), counterInput(t))

	assert.Equal(t, 3, ev.ResolvedCount)
	assert.Equal(t, 1, ev.OverlapCount)
	assert.Contains(t, ev.Assembled, "self.value = self.start")
	assert.NotContains(t, ev.Assembled, "self.value = 0")
	assert.InDelta(t, 6.0-1.0/3.0, ev.Reward, 1e-9)
}

func TestEvaluateSyntaxFailureZeroesReward(t *testing.T) {
	b := &stubBackend{total: 5, passed: 5}
	in := shapesInput(t)
	in.Tests = "import unittest\n\nclass Broken(unittest.TestCase:\n    pass\n"

	ev := newEvaluator(b).Evaluate(context.Background(), in)

	assert.False(t, ev.SyntaxOK)
	assert.Equal(t, 4, ev.ResolvedCount)
	assert.Zero(t, ev.Reward)
	assert.Equal(t, reward.Breakdown{}, ev.Breakdown)
	assert.Zero(t, b.calls.Load(), "no process for a program that does not compile")
}

// countingRecorder tallies candidate metrics and ignores the rest.
type countingRecorder struct {
	metrics.Nop
	valid, rejected int
}

func (r *countingRecorder) Candidates(valid, rejected int) {
	r.valid += valid
	r.rejected += rejected
}

func TestEvaluateRejectedCountsOnlyEligibleCandidates(t *testing.T) {
	rec := &countingRecorder{}
	e := newEvaluator(&stubBackend{total: 3, passed: 3})
	e.Metrics = rec
	in := counterInput(t)
	// Agent 0's reset is filtered by ownership; agent 1's decrement fails
	// to compile.
	in.Outputs[1] = strings.Replace(in.Outputs[1], "def decrement(self", "def decrement(self, self", 1)

	ev := e.Evaluate(context.Background(), in)

	assert.Equal(t, 2, ev.ResolvedCount)
	assert.Equal(t, 2, rec.valid)
	assert.Equal(t, 1, rec.rejected)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	b := &stubBackend{total: 5, passed: 4}
	in := shapesInput(t)
	// One owner per method leaves a single valid candidate each, so no
	// tie-break is drawn.
	in.Assignment = map[string]int{"area": 0, "perimeter": 0, "diagonal": 1, "scale": 1}
	e := &runner.Evaluator{
		Selector: &selection.Selector{},
		Sandbox:  &sandbox.Runner{Backend: b},
		Weights:  reward.DefaultWeights,
	}

	first := e.Evaluate(context.Background(), in)
	second := e.Evaluate(context.Background(), in)
	first.Elapsed, second.Elapsed = 0, 0

	assert.Equal(t, first, second)
	assert.Equal(t, first.Reward, second.Reward)
	assert.Equal(t, 4, first.ResolvedCount)
	assert.InDelta(t, 2.0+4.0*4.0/5.0-0.25, first.Reward, 1e-9)
}

func TestEvaluateFullCoverageSingleProducer(t *testing.T) {
	b := &stubBackend{total: 5, passed: 5}
	in := shapesInput(t)
	in.Outputs = []string{"```python\n" +
		"def area(self):\n    return self.width * self.height\n\n" +
		"def perimeter(self):\n    return 2 * (self.width + self.height)\n\n" +
		"def diagonal(self):\n    return math.hypot(self.width, self.height)\n\n" +
		"def scale(self, factor):\n    return Rectangle(self.width * factor, self.height * factor)\n" +
		"```\n"}

	ev := newEvaluator(b).Evaluate(context.Background(), in)

	assert.True(t, ev.SyntaxOK)
	assert.Equal(t, 4, ev.RequiredCount)
	assert.Equal(t, 4, ev.ResolvedCount)
	assert.Zero(t, ev.OverlapCount)
	assert.Zero(t, ev.Breakdown.Overlap)
	assert.Equal(t, 5, ev.Passed)
	assert.InDelta(t, reward.DefaultWeights.Coverage+reward.DefaultWeights.Tests, ev.Reward, 1e-9)
}

func TestEvaluateUncompilableUnresolvedStub(t *testing.T) {
	b := &stubBackend{total: 2, passed: 2}
	in := &runner.Input{
		Skeleton: "class Pair:\n" +
			"    def first(self):\n        pass\n\n" +
			"    def second(self):\n        # filled in by an agent\n",
		ClassName: "Pair",
		Required:  []string{"first", "second"},
		Outputs:   []string{"def first(self):\n    return 1\n"},
		Tests:     "import unittest\n\nclass T(unittest.TestCase):\n    def test_first(self):\n        self.assertEqual(Pair().first(), 1)\n",
	}

	ev := newEvaluator(b).Evaluate(context.Background(), in)

	assert.Equal(t, 1, ev.ResolvedCount)
	assert.False(t, ev.SyntaxOK)
	assert.Zero(t, ev.Reward)
	assert.Equal(t, reward.Breakdown{}, ev.Breakdown)
	assert.Zero(t, b.calls.Load())
}

func TestEvaluateNoCandidates(t *testing.T) {
	b := &stubBackend{total: 5, passed: 1}
	in := shapesInput(t)
	in.Outputs = []string{"I could not figure this one out.", ""}

	ev := newEvaluator(b).Evaluate(context.Background(), in)

	assert.Zero(t, ev.ResolvedCount)
	assert.Zero(t, ev.OverlapCount)
	assert.Equal(t, in.Skeleton, ev.Assembled)
	assert.InDelta(t, 4.0/5.0, ev.Reward, 1e-9)
	for _, d := range ev.Decisions {
		assert.Equal(t, selection.ReasonNoCandidate, d.Reason)
	}
}

func TestEvaluateMissingClassDegrades(t *testing.T) {
	b := &stubBackend{total: 1, passed: 1}
	in := shapesInput(t)
	in.Required = []string{"area"}
	in.ClassName = "Square"

	ev := newEvaluator(b).Evaluate(context.Background(), in)

	assert.Equal(t, 1, ev.ResolvedCount)
	require.Len(t, ev.Gaps, 1)
	assert.Equal(t, "area", ev.Gaps[0].Method)
	assert.Equal(t, in.Skeleton, ev.Assembled)
}

func TestEvaluateRecoversStagePanic(t *testing.T) {
	b := &stubBackend{panics: true}
	var ev *runner.Evaluation
	require.NotPanics(t, func() {
		ev = newEvaluator(b).Evaluate(context.Background(), shapesInput(t))
	})
	assert.True(t, ev.ParseError)
	assert.Zero(t, ev.Reward)
}

func TestEvaluateZeroValue(t *testing.T) {
	var e runner.Evaluator
	require.NotPanics(t, func() {
		ev := e.Evaluate(context.Background(), nil)
		assert.Empty(t, ev.Required)
		assert.Zero(t, ev.Reward)
	})
}

func TestEvaluateAllKeepsOrder(t *testing.T) {
	b := &stubBackend{total: 2, passed: 1}
	e := newEvaluator(b)
	shapes, counter := shapesInput(t), counterInput(t)
	inputs := []*runner.Input{shapes, counter, shapes, counter}

	evs := e.EvaluateAll(context.Background(), 3, inputs)

	require.Len(t, evs, 4)
	for i, ev := range evs {
		require.NotNil(t, ev)
		assert.Equal(t, inputs[i].Skeleton == shapes.Skeleton, ev.RequiredCount == 4, "evaluation %d", i)
	}
	assert.Equal(t, int32(4), b.calls.Load())
}

func requirePython(t *testing.T) string {
	t.Helper()
	python, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not on PATH")
	}
	return python
}

func TestEvaluateWithPython(t *testing.T) {
	python := requirePython(t)
	e := &runner.Evaluator{
		Sandbox: &sandbox.Runner{
			Backend: &sandbox.LocalBackend{Python: python},
			BaseDir: t.TempDir(),
			Timeout: 30 * time.Second,
		},
	}

	ev := e.Evaluate(context.Background(), shapesInput(t))
	require.False(t, ev.ParseError, ev.Detail)
	assert.Equal(t, 5, ev.Total)
	assert.Equal(t, 5, ev.Passed)
	assert.InDelta(t, 5.75, ev.Reward, 1e-9)

	ev = e.Evaluate(context.Background(), counterInput(t))
	require.False(t, ev.ParseError, ev.Detail)
	assert.Equal(t, 3, ev.Passed)

	entries, err := os.ReadDir(e.Sandbox.BaseDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "run directories are removed")
}

func TestEvaluateInterpreterCompileFailureWithPython(t *testing.T) {
	python := requirePython(t)
	e := &runner.Evaluator{
		Sandbox: &sandbox.Runner{
			Backend: &sandbox.LocalBackend{Python: python},
			BaseDir: t.TempDir(),
			Timeout: 30 * time.Second,
		},
	}
	// The structure is fine; only the interpreter's symbol table sees that
	// nothing binds total.
	in := &runner.Input{
		Skeleton:  "class Calc:\n    def add(self, a, b):\n        pass\n",
		ClassName: "Calc",
		Outputs: []string{"```python\n" +
			"def add(self, a, b):\n" +
			"    def bump():\n        nonlocal total\n        total = 1\n" +
			"    return a + b\n```\n"},
		Tests: "import unittest\n\nclass T(unittest.TestCase):\n    def test_add(self):\n        self.assertEqual(Calc().add(1, 2), 3)\n",
	}

	ev := e.Evaluate(context.Background(), in)

	assert.Equal(t, 1, ev.ResolvedCount)
	assert.False(t, ev.SyntaxOK, ev.Detail)
	assert.False(t, ev.ParseError)
	assert.Contains(t, ev.Detail, "nonlocal")
	assert.Zero(t, ev.Total)
	assert.Zero(t, ev.Reward)
	assert.Equal(t, reward.Breakdown{}, ev.Breakdown)
}
