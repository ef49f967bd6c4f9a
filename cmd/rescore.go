package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signalnine/tagteam/internal/result"
	"github.com/signalnine/tagteam/internal/reward"
	"github.com/signalnine/tagteam/internal/runner"
)

func newRescoreCmd() *cobra.Command {
	var w reward.Weights
	cmd := &cobra.Command{
		Use:   "rescore [run-dir]",
		Short: "Re-score stored evaluations with new reward weights",
		Long:  "Walk a run directory and recompute every trial's reward from its evaluation.json, updating evaluation.json and meta.json. Tests are not re-run.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if w.Coverage == 0 && w.Tests == 0 {
				if cfg, err := loadConfig(); err == nil {
					w = reward.Weights{Coverage: cfg.Reward.Coverage, Tests: cfg.Reward.Tests}
				}
			}
			n, err := rescoreRun(args[0], w)
			if err != nil {
				return err
			}
			fmt.Printf("Re-scored %d trials\n", n)
			return nil
		},
	}
	cmd.Flags().Float64Var(&w.Coverage, "coverage", 0, "coverage weight (default from config, else 2.0)")
	cmd.Flags().Float64Var(&w.Tests, "tests", 0, "tests weight (default from config, else 4.0)")
	return cmd
}

func rescoreRun(runDir string, w reward.Weights) (int, error) {
	count := 0
	err := filepath.Walk(runDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Name() != result.EvaluationFile {
			return nil
		}
		trialDir := filepath.Dir(path)
		if err := rescoreTrial(trialDir, w); err != nil {
			logger.Warn("skipping trial", zap.String("dir", trialDir), zap.Error(err))
			return nil
		}
		count++
		return nil
	})
	return count, err
}

func rescoreTrial(trialDir string, w reward.Weights) error {
	data, err := os.ReadFile(filepath.Join(trialDir, result.EvaluationFile))
	if err != nil {
		return err
	}
	var ev runner.Evaluation
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("parsing evaluation: %w", err)
	}
	if err := ev.Rescore(w); err != nil {
		return err
	}
	meta, err := result.ReadTrialMeta(filepath.Join(trialDir, result.MetaFile))
	if err != nil {
		return err
	}
	meta.Reward = ev.Reward
	meta.Scores = result.Scores{
		Coverage: ev.Breakdown.Coverage,
		Tests:    ev.Breakdown.Tests,
		Overlap:  ev.Breakdown.Overlap,
	}
	if err := result.WriteJSON(trialDir, result.EvaluationFile, &ev); err != nil {
		return err
	}
	return result.WriteTrialMeta(trialDir, meta)
}
