// Package metrics exports Prometheus instrumentation for the mutation engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the mutation pipeline.
type Metrics struct {
	// Verdict outcomes by outcome and operating mode.
	VerdictOutcome *prometheus.CounterVec

	// Derived recompute invocations.
	RecomputeTotal prometheus.Counter

	// Components removed by cascade resolution.
	CascadeRemovals prometheus.Counter

	// Writes detected bypassing the mutation authority.
	BoundaryViolations prometheus.Counter

	// Full apply latency including validation, recompute, and cascade.
	ApplyLatency prometheus.Histogram
}

// New registers and returns the engine metrics.
func New() *Metrics {
	return &Metrics{
		VerdictOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "swse_engine_verdict_outcomes_total",
			Help: "Total preflight verdicts by outcome and operating mode",
		}, []string{"outcome", "mode"}),

		RecomputeTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "swse_engine_derived_recomputes_total",
			Help: "Total derived snapshot recomputations",
		}),

		CascadeRemovals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "swse_engine_cascade_removals_total",
			Help: "Total components removed by cascade resolution",
		}),

		BoundaryViolations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "swse_engine_boundary_violations_total",
			Help: "Total entity writes detected bypassing the mutation authority",
		}),

		ApplyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "swse_engine_apply_duration_seconds",
			Help:    "Duration of full mutation applies including cascade",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

// IncVerdict records a verdict outcome. Nil-safe for unwired callers.
func (m *Metrics) IncVerdict(outcome, mode string) {
	if m != nil {
		m.VerdictOutcome.WithLabelValues(outcome, mode).Inc()
	}
}

// IncRecompute records one derived recompute.
func (m *Metrics) IncRecompute() {
	if m != nil {
		m.RecomputeTotal.Inc()
	}
}

// AddCascadeRemovals records cascaded component removals.
func (m *Metrics) AddCascadeRemovals(count int) {
	if m != nil && count > 0 {
		m.CascadeRemovals.Add(float64(count))
	}
}

// IncBoundaryViolation records one detected bypass write.
func (m *Metrics) IncBoundaryViolation() {
	if m != nil {
		m.BoundaryViolations.Inc()
	}
}

// ObserveApplyLatency records the duration of one apply.
func (m *Metrics) ObserveApplyLatency(d time.Duration) {
	if m != nil {
		m.ApplyLatency.Observe(d.Seconds())
	}
}
