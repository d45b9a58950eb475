// Package metrics provides Prometheus metrics for ackscan runs.
//
// Metrics:
//   - ackscan_records_total{format,verdict}
//   - ackscan_extraction_errors_total{format}
//   - ackscan_publish_errors_total
//   - ackscan_extraction_seconds{format}
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Verdict label values.
const (
	VerdictAcknowledged    = "acknowledged"
	VerdictNotAcknowledged = "not_acknowledged"
	VerdictNoFulltext      = "no_fulltext"
)

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the process-wide metrics registry.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Registry holds ackscan metrics on a private Prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	RecordsTotal          *prometheus.CounterVec
	ExtractionErrorsTotal *prometheus.CounterVec
	PublishErrorsTotal    prometheus.Counter
	ExtractionSeconds     *prometheus.HistogramVec
}

// NewRegistry creates and registers a fresh set of metrics.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Registry{
		reg: reg,
		RecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ackscan_records_total",
				Help: "Total number of ledger records processed",
			},
			[]string{"format", "verdict"},
		),
		ExtractionErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ackscan_extraction_errors_total",
				Help: "Total number of fulltext extractions that failed",
			},
			[]string{"format"},
		),
		PublishErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ackscan_publish_errors_total",
				Help: "Total number of acknowledged records whose artifacts were not fully published",
			},
		),
		ExtractionSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ackscan_extraction_seconds",
				Help:    "Duration of fulltext extraction in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"format"},
		),
	}
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// RecordResult counts one processed record.
func (r *Registry) RecordResult(format, verdict string) {
	r.RecordsTotal.WithLabelValues(format, verdict).Inc()
}

// RecordExtraction observes one extraction attempt.
func (r *Registry) RecordExtraction(format string, d time.Duration, err error) {
	r.ExtractionSeconds.WithLabelValues(format).Observe(d.Seconds())
	if err != nil {
		r.ExtractionErrorsTotal.WithLabelValues(format).Inc()
	}
}

// RecordPublishError counts one incomplete publication.
func (r *Registry) RecordPublishError() {
	r.PublishErrorsTotal.Inc()
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
