package runner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/signalnine/tagteam/internal/config"
	"github.com/signalnine/tagteam/internal/result"
)

type TrialOpts struct {
	Task      *config.Task
	TrialNum  int
	RunDir    string
	Evaluator *Evaluator
}

// LoadInput reads a configured task's files into an evaluation input.
func LoadInput(task *config.Task) (*Input, error) {
	skeleton, err := os.ReadFile(task.Skeleton)
	if err != nil {
		return nil, fmt.Errorf("reading skeleton: %w", err)
	}
	tests, err := os.ReadFile(task.Tests)
	if err != nil {
		return nil, fmt.Errorf("reading tests: %w", err)
	}
	outputs := make([]string, len(task.Outputs))
	for i, path := range task.Outputs {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading output %d: %w", i, err)
		}
		outputs[i] = string(data)
	}
	return &Input{
		Skeleton:   string(skeleton),
		ClassName:  task.ClassName,
		Required:   task.Required,
		Outputs:    outputs,
		Assignment: task.Assignment,
		Tests:      string(tests),
		Timeout:    time.Duration(task.TimeoutSeconds) * time.Second,
	}, nil
}

// RunTrial evaluates one task once and stores the meta, the full
// evaluation and the assembled program in the trial directory.
func RunTrial(ctx context.Context, opts *TrialOpts) (*result.TrialMeta, error) {
	in, err := LoadInput(opts.Task)
	if err != nil {
		return nil, fmt.Errorf("loading task %s: %w", opts.Task.ID, err)
	}
	ev := opts.Evaluator
	if ev == nil {
		ev = &Evaluator{}
	}
	eval := ev.Evaluate(ctx, in)

	trialDir := result.TrialDir(opts.RunDir, opts.Task.ID, opts.TrialNum)
	if err := result.WriteArtifact(trialDir, result.AssembledFile, []byte(eval.Assembled)); err != nil {
		return nil, err
	}
	if err := result.WriteJSON(trialDir, result.EvaluationFile, eval); err != nil {
		return nil, err
	}

	meta := MetaFromEvaluation(opts.Task, opts.TrialNum, eval)
	if err := result.WriteTrialMeta(trialDir, meta); err != nil {
		return nil, fmt.Errorf("writing meta: %w", err)
	}
	return meta, nil
}

func MetaFromEvaluation(task *config.Task, trial int, eval *Evaluation) *result.TrialMeta {
	return &result.TrialMeta{
		Task:       task.ID,
		Category:   task.Category,
		Trial:      trial,
		DurationMS: eval.Elapsed.Milliseconds(),
		Status:     eval.Status(),
		ExitCode:   eval.ExitCode,
		Scores: result.Scores{
			Coverage: eval.Breakdown.Coverage,
			Tests:    eval.Breakdown.Tests,
			Overlap:  eval.Breakdown.Overlap,
		},
		Reward:     eval.Reward,
		Required:   eval.RequiredCount,
		Resolved:   eval.ResolvedCount,
		Overlap:    eval.OverlapCount,
		TestsTotal: eval.Total,
		TestsPass:  eval.Passed,
	}
}
