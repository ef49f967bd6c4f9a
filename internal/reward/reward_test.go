package reward_test

import (
	"errors"
	"testing"

	"github.com/signalnine/tagteam/internal/reward"
	"github.com/signalnine/tagteam/internal/sandbox"
)

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		required int
		resolved int
		overlap  int
		rep      *sandbox.Report
		want     reward.Breakdown
	}{
		{
			name:     "everything resolved and passing",
			required: 4, resolved: 4,
			rep:  &sandbox.Report{SyntaxOK: true, Total: 10, Passed: 10},
			want: reward.Breakdown{Coverage: 2, Tests: 4, Total: 6},
		},
		{
			name:     "partial coverage with overlap",
			required: 4, resolved: 3, overlap: 2,
			rep:  &sandbox.Report{SyntaxOK: true, Total: 8, Passed: 6},
			want: reward.Breakdown{Coverage: 1.5, Tests: 3, Overlap: -0.5, Total: 4},
		},
		{
			name:     "syntax failure zeroes everything",
			required: 4, resolved: 4, overlap: 1,
			rep:  &sandbox.Report{SyntaxOK: false},
			want: reward.Breakdown{},
		},
		{
			name:     "no report",
			required: 4, resolved: 4,
			want: reward.Breakdown{},
		},
		{
			name:     "timeout keeps coverage",
			required: 2, resolved: 1,
			rep:  &sandbox.Report{SyntaxOK: true, TimedOut: true},
			want: reward.Breakdown{Coverage: 1, Total: 1},
		},
		{
			name: "no required methods",
			rep:  &sandbox.Report{SyntaxOK: true, Total: 2, Passed: 1},
			want: reward.Breakdown{Tests: 2, Total: 2},
		},
		{
			name:     "full overlap nothing valid",
			required: 3, overlap: 3,
			rep:  &sandbox.Report{SyntaxOK: true, Total: 5},
			want: reward.Breakdown{Overlap: -1, Total: -1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reward.Score(reward.DefaultWeights, tt.required, tt.resolved, tt.overlap, tt.rep)
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			for _, pair := range [][2]float64{
				{got.Coverage, tt.want.Coverage},
				{got.Tests, tt.want.Tests},
				{got.Overlap, tt.want.Overlap},
				{got.Total, tt.want.Total},
			} {
				if absf(pair[0]-pair[1]) > 1e-9 {
					t.Errorf("got %+v, want %+v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestScoreDefaultWeights(t *testing.T) {
	rep := &sandbox.Report{SyntaxOK: true, Total: 1, Passed: 1}
	got, err := reward.Score(reward.Weights{}, 1, 1, 0, rep)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if absf(got.Total-6.0) > 1e-9 {
		t.Errorf("got %f, want 6.0", got.Total)
	}
}

func TestScoreCustomWeights(t *testing.T) {
	rep := &sandbox.Report{SyntaxOK: true, Total: 2, Passed: 1}
	got, err := reward.Score(reward.Weights{Coverage: 1, Tests: 1}, 2, 2, 0, rep)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if absf(got.Total-1.5) > 1e-9 {
		t.Errorf("got %f, want 1.5", got.Total)
	}
}

func TestScoreNegativeCounts(t *testing.T) {
	cases := []struct {
		required, resolved, overlap int
		rep                         *sandbox.Report
	}{
		{-1, 0, 0, nil},
		{1, -1, 0, nil},
		{1, 0, -2, nil},
		{1, 1, 0, &sandbox.Report{SyntaxOK: true, Total: -1}},
	}
	for _, c := range cases {
		_, err := reward.Score(reward.DefaultWeights, c.required, c.resolved, c.overlap, c.rep)
		if !errors.Is(err, reward.ErrNegativeCount) {
			t.Errorf("Score(%d, %d, %d): got %v, want ErrNegativeCount", c.required, c.resolved, c.overlap, err)
		}
	}
}
