package sandbox

import "time"

// Outcome of one test case.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
)

// CaseResult is one test case in discovery order.
type CaseResult struct {
	ID      string  `json:"id"`
	Outcome Outcome `json:"outcome"`
}

// Report is the outcome of one sandbox run. Counts are either fully
// populated from the child's summary or all zero.
type Report struct {
	SyntaxOK   bool         `json:"syntax_ok"`
	TimedOut   bool         `json:"timed_out"`
	ParseError bool         `json:"parse_error"`
	Total      int          `json:"total_test_count"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	Errored    int          `json:"errored"`
	Skipped    int          `json:"skipped"`
	Results    []CaseResult `json:"test_results"`

	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration_ns"`
	// Detail explains a degraded report: the syntax error, the parse
	// failure or the timeout.
	Detail string `json:"detail,omitempty"`
	// Stderr is the tail of the child's standard error.
	Stderr string `json:"stderr,omitempty"`
}

// PassRate is Passed/Total, zero when nothing ran.
func (r *Report) PassRate() float64 {
	if r == nil || r.Total == 0 {
		return 0
	}
	return float64(r.Passed) / float64(r.Total)
}

// Status is a one-word summary for logs and metrics labels.
func (r *Report) Status() string {
	switch {
	case r == nil:
		return "missing"
	case !r.SyntaxOK:
		return "syntax_error"
	case r.TimedOut:
		return "timeout"
	case r.ParseError:
		return "crashed"
	case r.Total > 0 && r.Passed == r.Total:
		return "passed"
	default:
		return "failed"
	}
}

func (r *Report) zeroCounts() {
	r.Total, r.Passed, r.Failed, r.Errored, r.Skipped = 0, 0, 0, 0, 0
	r.Results = []CaseResult{}
}
