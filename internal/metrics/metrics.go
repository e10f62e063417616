// Package metrics provides Prometheus metrics for ranking runs
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query outcomes
const (
	OutcomeOK         = "ok"
	OutcomeParseError = "parse_error"
	OutcomeEmpty      = "empty"
)

// Metrics holds the metrics of one run. Each instance owns its registry so
// repeated runs in one process never collide.
type Metrics struct {
	Registry *prometheus.Registry

	QueriesTotal     *prometheus.CounterVec
	HitsTotal        prometheus.Counter
	DocumentsIndexed prometheus.Gauge
	QueryDuration    prometheus.Histogram
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{Registry: reg}

	m.QueriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranker_queries_total",
			Help: "Total number of queries processed, by outcome",
		},
		[]string{"outcome"},
	)
	// Pre-create every outcome so the textfile always lists all three.
	for _, outcome := range []string{OutcomeOK, OutcomeParseError, OutcomeEmpty} {
		m.QueriesTotal.WithLabelValues(outcome)
	}

	m.HitsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "ranker_hits_total",
			Help: "Total number of ranked hits written",
		},
	)

	m.DocumentsIndexed = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "ranker_documents_indexed",
			Help: "Number of documents in the index",
		},
	)

	m.QueryDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ranker_query_duration_seconds",
			Help:    "Time spent building and executing one query",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	return m
}

// RecordQuery records the outcome, hit count and duration of one query
func (m *Metrics) RecordQuery(outcome string, hits int, duration time.Duration) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(outcome).Inc()
	m.HitsTotal.Add(float64(hits))
	m.QueryDuration.Observe(duration.Seconds())
}

// SetDocuments records the index size
func (m *Metrics) SetDocuments(n int) {
	if m == nil {
		return
	}
	m.DocumentsIndexed.Set(float64(n))
}

// WriteTextfile writes the registry in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
