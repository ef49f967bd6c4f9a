package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/tagteam/internal/result"
)

type TaskSummary struct {
	Task         string  `json:"task"`
	Trials       int     `json:"trials"`
	PassRate     float64 `json:"pass_rate"`
	MeanReward   float64 `json:"mean_reward"`
	MinReward    float64 `json:"min_reward"`
	MaxReward    float64 `json:"max_reward"`
	MeanCoverage float64 `json:"mean_coverage"`
	MeanTests    float64 `json:"mean_tests"`
	MeanOverlap  float64 `json:"mean_overlap"`
	SyntaxErrors int     `json:"syntax_errors"`
	Timeouts     int     `json:"timeouts"`
}

// Generate reads trial results and produces a summary report.
func Generate(runDir, format string, w io.Writer) error {
	metas, err := collectMetas(runDir)
	if err != nil {
		return err
	}

	summaries := aggregate(metas)

	switch format {
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	default:
		return writeTable(summaries, w)
	}
}

func collectMetas(runDir string) ([]*result.TrialMeta, error) {
	var metas []*result.TrialMeta
	err := filepath.Walk(runDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Name() == result.MetaFile {
			meta, err := result.ReadTrialMeta(path)
			if err != nil {
				return nil
			}
			metas = append(metas, meta)
		}
		return nil
	})
	return metas, err
}

func aggregate(metas []*result.TrialMeta) []TaskSummary {
	type accum struct {
		count    int
		passed   int
		reward   float64
		min, max float64
		coverage float64
		tests    float64
		overlap  float64
		syntax   int
		timeouts int
	}
	byTask := map[string]*accum{}

	for _, m := range metas {
		a, ok := byTask[m.Task]
		if !ok {
			a = &accum{min: m.Reward, max: m.Reward}
			byTask[m.Task] = a
		}
		a.count++
		a.reward += m.Reward
		a.min = min(a.min, m.Reward)
		a.max = max(a.max, m.Reward)
		a.coverage += m.Scores.Coverage
		a.tests += m.Scores.Tests
		a.overlap += m.Scores.Overlap
		switch m.Status {
		case "passed":
			a.passed++
		case "syntax_error":
			a.syntax++
		case "timeout":
			a.timeouts++
		}
	}

	var summaries []TaskSummary
	for name, a := range byTask {
		n := float64(a.count)
		summaries = append(summaries, TaskSummary{
			Task:         name,
			Trials:       a.count,
			PassRate:     float64(a.passed) / n,
			MeanReward:   a.reward / n,
			MinReward:    a.min,
			MaxReward:    a.max,
			MeanCoverage: a.coverage / n,
			MeanTests:    a.tests / n,
			MeanOverlap:  a.overlap / n,
			SyntaxErrors: a.syntax,
			Timeouts:     a.timeouts,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Task < summaries[j].Task
	})
	return summaries
}

func writeTable(summaries []TaskSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tTRIALS\tPASS RATE\tMEAN REWARD\tMIN\tMAX\tCOVERAGE\tTESTS\tOVERLAP\tSYNTAX ERR\tTIMEOUTS")
	fmt.Fprintln(tw, strings.Repeat("-", 100))
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%.0f%%\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t%d\t%d\n",
			s.Task, s.Trials, s.PassRate*100, s.MeanReward, s.MinReward, s.MaxReward,
			s.MeanCoverage, s.MeanTests, s.MeanOverlap, s.SyntaxErrors, s.Timeouts)
	}
	return tw.Flush()
}

func writeMarkdown(summaries []TaskSummary, w io.Writer) error {
	fmt.Fprintln(w, "| Task | Trials | Pass Rate | Mean Reward | Min | Max | Coverage | Tests | Overlap | Syntax Errors | Timeouts |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|---|---|---|---|")
	for _, s := range summaries {
		fmt.Fprintf(w, "| %s | %d | %.0f%% | %.3f | %.3f | %.3f | %.3f | %.3f | %.3f | %d | %d |\n",
			s.Task, s.Trials, s.PassRate*100, s.MeanReward, s.MinReward, s.MaxReward,
			s.MeanCoverage, s.MeanTests, s.MeanOverlap, s.SyntaxErrors, s.Timeouts)
	}
	return nil
}

func writeJSON(summaries []TaskSummary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
