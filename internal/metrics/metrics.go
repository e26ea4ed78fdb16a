// Package metrics exposes Prometheus collectors for generation and export.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "prdgenie"

var (
	GenerationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "total",
			Help:      "Total number of PRD generations by outcome",
		},
		[]string{"provider", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "PRD generation duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider"},
	)

	AttachmentsEncoded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "attachments_encoded_total",
			Help:      "Total number of image attachments encoded for model requests",
		},
	)

	ExportTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "total",
			Help:      "Total number of document exports by format and outcome",
		},
		[]string{"format", "outcome"},
	)
)

// RecordGeneration records the outcome and duration of one generation.
func RecordGeneration(provider, outcome string, seconds float64) {
	GenerationTotal.WithLabelValues(provider, outcome).Inc()
	GenerationDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordExport records the outcome of one export.
func RecordExport(format, outcome string) {
	ExportTotal.WithLabelValues(format, outcome).Inc()
}
