package reward

import (
	"errors"
	"fmt"

	"github.com/signalnine/tagteam/internal/sandbox"
)

// Weights are the ceilings of the positive reward terms.
type Weights struct {
	Coverage float64 `yaml:"coverage" json:"coverage"`
	Tests    float64 `yaml:"tests" json:"tests"`
}

var DefaultWeights = Weights{
	Coverage: 2.0,
	Tests:    4.0,
}

// Breakdown is a reward with its additive terms.
type Breakdown struct {
	Coverage float64 `json:"coverage"`
	Tests    float64 `json:"tests"`
	Overlap  float64 `json:"overlap"`
	Total    float64 `json:"total"`
}

var ErrNegativeCount = errors.New("negative count")

// Score combines method coverage, test pass rate and producer overlap into
// a reward. A missing report or one whose program failed the syntax check
// scores zero on every term.
func Score(w Weights, required, resolved, overlap int, rep *sandbox.Report) (Breakdown, error) {
	if required < 0 || resolved < 0 || overlap < 0 {
		return Breakdown{}, fmt.Errorf("scoring required=%d resolved=%d overlap=%d: %w", required, resolved, overlap, ErrNegativeCount)
	}
	if rep != nil && (rep.Total < 0 || rep.Passed < 0) {
		return Breakdown{}, fmt.Errorf("scoring total=%d passed=%d: %w", rep.Total, rep.Passed, ErrNegativeCount)
	}
	if rep == nil || !rep.SyntaxOK {
		return Breakdown{}, nil
	}
	if w.Coverage == 0 && w.Tests == 0 {
		w = DefaultWeights
	}

	var b Breakdown
	if required > 0 {
		b.Coverage = w.Coverage * float64(resolved) / float64(required)
		b.Overlap = -float64(overlap) / float64(required)
	}
	if rep.Total > 0 {
		b.Tests = w.Tests * float64(rep.Passed) / float64(rep.Total)
	}
	b.Total = b.Coverage + b.Tests + b.Overlap
	return b, nil
}
