package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the duplicate detector.
type Metrics struct {
	// Pairs surfaced per scan, by evidence tier
	PairsFound *prometheus.CounterVec

	// Full scan duration
	ScanDuration prometheus.Histogram

	// Operator dispositions by resulting status
	Dispositions *prometheus.CounterVec
}

// New creates a new Metrics instance with all detector metrics registered.
func New() *Metrics {
	return &Metrics{
		PairsFound: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trapper_dedupe_pairs_total",
			Help: "Duplicate candidate pairs surfaced, by evidence tier",
		}, []string{"tier"}),

		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trapper_dedupe_scan_duration_seconds",
			Help:    "Duration of a full duplicate detection scan",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),

		Dispositions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trapper_dedupe_dispositions_total",
			Help: "Operator dispositions of duplicate candidates, by status",
		}, []string{"status"}),
	}
}

// IncrementPair records one surfaced candidate pair.
func (m *Metrics) IncrementPair(tier int) {
	if m != nil {
		m.PairsFound.WithLabelValues(strconv.Itoa(tier)).Inc()
	}
}

// ObserveScanDuration records the duration of one detection scan.
func (m *Metrics) ObserveScanDuration(d time.Duration) {
	if m != nil {
		m.ScanDuration.Observe(d.Seconds())
	}
}

// IncrementDisposition records an operator disposition.
func (m *Metrics) IncrementDisposition(status string) {
	if m != nil {
		m.Dispositions.WithLabelValues(status).Inc()
	}
}
