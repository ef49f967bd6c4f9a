package result

// TrialMeta summarizes one evaluation of a task.
type TrialMeta struct {
	Task       string  `json:"task"`
	Category   string  `json:"category,omitempty"`
	Trial      int     `json:"trial"`
	DurationMS int64   `json:"duration_ms"`
	Status     string  `json:"status"`
	ExitCode   int     `json:"exit_code"`
	Scores     Scores  `json:"scores"`
	Reward     float64 `json:"reward"`
	Required   int     `json:"required"`
	Resolved   int     `json:"resolved"`
	Overlap    int     `json:"overlap"`
	TestsTotal int     `json:"tests_total"`
	TestsPass  int     `json:"tests_passed"`
}

// Scores are the additive reward terms.
type Scores struct {
	Coverage float64 `json:"coverage"`
	Tests    float64 `json:"tests"`
	Overlap  float64 `json:"overlap"`
}
