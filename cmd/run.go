package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signalnine/tagteam/internal/config"
	"github.com/signalnine/tagteam/internal/report"
	"github.com/signalnine/tagteam/internal/result"
	"github.com/signalnine/tagteam/internal/runner"
)

var (
	flagTask        string
	flagCategory    string
	flagTrials      int
	flagParallel    int
	flagMetricsAddr string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate every configured task",
		RunE:  runBenchmark,
	}
	cmd.Flags().StringVar(&flagTask, "task", "", "filter to a single task")
	cmd.Flags().StringVar(&flagCategory, "category", "", "filter by category")
	cmd.Flags().IntVar(&flagTrials, "trials", 0, "override trial count")
	cmd.Flags().IntVar(&flagParallel, "parallel", 1, "max concurrent evaluations")
	cmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	return cmd
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagTrials > 0 {
		cfg.Trials = flagTrials
	}
	tasks := filterTasks(cfg.Tasks, flagTask, flagCategory)
	if len(tasks) == 0 {
		return fmt.Errorf("no tasks match --task=%q --category=%q", flagTask, flagCategory)
	}

	runDir, err := result.CreateRunDir(cfg.Results.Dir)
	if err != nil {
		return err
	}
	fmt.Printf("Run directory: %s\n", runDir)

	ctx := context.Background()
	if flagMetricsAddr != "" {
		stop := serveMetrics(flagMetricsAddr)
		defer stop()
	}

	ev := newEvaluator(cfg.Sandbox, cfg.Reward, cfg.Seed)
	var jobs []runner.Job
	for _, task := range tasks {
		for trial := 1; trial <= cfg.Trials; trial++ {
			task, trial := task, trial
			jobs = append(jobs, func(ctx context.Context) error {
				fmt.Printf("Running %s (trial %d/%d)...\n", task.ID, trial, cfg.Trials)
				meta, err := runner.RunTrial(ctx, &runner.TrialOpts{
					Task:      &task,
					TrialNum:  trial,
					RunDir:    runDir,
					Evaluator: ev,
				})
				if err != nil {
					return fmt.Errorf("%s trial %d: %w", task.ID, trial, err)
				}
				fmt.Printf("  %s trial %d: %s, reward %.3f (%d/%d tests)\n",
					task.ID, trial, meta.Status, meta.Reward, meta.TestsPass, meta.TestsTotal)
				return nil
			})
		}
	}
	for _, err := range runner.RunPool(ctx, flagParallel, jobs) {
		fmt.Printf("  ERROR: %v\n", err)
	}

	fmt.Println("\n--- Results ---")
	return report.Generate(runDir, "table", os.Stdout)
}

func serveMetrics(addr string) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func filterTasks(tasks []config.Task, id, category string) []config.Task {
	var filtered []config.Task
	for _, t := range tasks {
		if id != "" && t.ID != id {
			continue
		}
		if category != "" && !matchCategory(t.Category, category) {
			continue
		}
		filtered = append(filtered, t)
	}
	return filtered
}

func matchCategory(category, pattern string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		return strings.HasPrefix(category, prefix+"/")
	}
	return category == pattern
}
