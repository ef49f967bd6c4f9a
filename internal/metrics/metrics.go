// Package metrics holds the Prometheus instrumentation of the evaluation
// pipeline. Vectors register with the default registry on init.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tagteam"

var (
	// evaluations counts finished evaluations.
	// Labels: status (passed, failed, syntax_error, timeout, crashed)
	evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evaluations_total",
		Help:      "Total evaluations by sandbox outcome",
	}, []string{"status"})

	// sandboxDuration measures child process wall time.
	// Labels: backend (local, docker)
	sandboxDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sandbox",
		Name:      "duration_seconds",
		Help:      "Sandbox run wall time in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"backend"})

	rewards = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reward",
		Help:      "Distribution of total rewards",
		Buckets:   []float64{-1, -0.5, 0, 0.5, 1, 2, 3, 4, 5, 6},
	})

	// candidates counts candidates seen by the selector.
	// Labels: validity (valid, rejected)
	candidates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "selection",
		Name:      "candidates_total",
		Help:      "Candidates considered by the selector",
	}, []string{"validity"})

	// assemblyGaps counts methods the assembler could not splice.
	// Labels: reason
	assemblyGaps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assembly",
		Name:      "gaps_total",
		Help:      "Resolved methods the assembler could not place",
	}, []string{"reason"})

	// stagePanics counts panics recovered inside a pipeline stage.
	stagePanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stage_panics_total",
		Help:      "Panics recovered inside a pipeline stage",
	}, []string{"stage"})
)

// Recorder receives pipeline observations.
type Recorder interface {
	Evaluation(status string, reward float64)
	SandboxRun(backend string, d time.Duration)
	Candidates(valid, rejected int)
	AssemblyGap(reason string)
	StagePanic(stage string)
}

// Prometheus records into the package-level vectors.
type Prometheus struct{}

func (Prometheus) Evaluation(status string, reward float64) {
	evaluations.WithLabelValues(status).Inc()
	rewards.Observe(reward)
}

func (Prometheus) SandboxRun(backend string, d time.Duration) {
	sandboxDuration.WithLabelValues(backend).Observe(d.Seconds())
}

func (Prometheus) Candidates(valid, rejected int) {
	candidates.WithLabelValues("valid").Add(float64(valid))
	candidates.WithLabelValues("rejected").Add(float64(rejected))
}

func (Prometheus) AssemblyGap(reason string) {
	assemblyGaps.WithLabelValues(reason).Inc()
}

func (Prometheus) StagePanic(stage string) {
	stagePanics.WithLabelValues(stage).Inc()
}

// Nop discards observations.
type Nop struct{}

func (Nop) Evaluation(string, float64)       {}
func (Nop) SandboxRun(string, time.Duration) {}
func (Nop) Candidates(int, int)              {}
func (Nop) AssemblyGap(string)               {}
func (Nop) StagePanic(string)                {}
