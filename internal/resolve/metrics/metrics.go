package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the resolution module.
type Metrics struct {
	// Decision outcomes by type and source system
	DecisionOutcome *prometheus.CounterVec

	// Full resolution latency
	ResolveLatency prometheus.Histogram

	// Candidates scored per attempt
	CandidateCount prometheus.Histogram

	// Uniqueness races retried as matches
	ConstraintRetries prometheus.Counter
}

// New creates a new Metrics instance with all resolution metrics registered.
func New() *Metrics {
	return &Metrics{
		DecisionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trapper_resolve_decisions_total",
			Help: "Total resolution outcomes by decision type and source system",
		}, []string{"decision_type", "source_system"}),

		ResolveLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trapper_resolve_duration_seconds",
			Help:    "Duration of a full resolution attempt including store writes",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		CandidateCount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trapper_resolve_candidates",
			Help:    "Number of candidates scored per resolution attempt",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		}),

		ConstraintRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trapper_resolve_constraint_retries_total",
			Help: "Entity creations that lost a uniqueness race and were retried as matches",
		}),
	}
}

// IncrementOutcome records a resolution outcome.
func (m *Metrics) IncrementOutcome(decisionType, sourceSystem string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(decisionType, sourceSystem).Inc()
	}
}

// ObserveResolveLatency records the duration of a resolution attempt.
func (m *Metrics) ObserveResolveLatency(d time.Duration) {
	if m != nil {
		m.ResolveLatency.Observe(d.Seconds())
	}
}

// ObserveCandidateCount records how many candidates an attempt scored.
func (m *Metrics) ObserveCandidateCount(n int) {
	if m != nil {
		m.CandidateCount.Observe(float64(n))
	}
}

// IncrementConstraintRetry records a creation retried after a uniqueness race.
func (m *Metrics) IncrementConstraintRetry() {
	if m != nil {
		m.ConstraintRetries.Inc()
	}
}
