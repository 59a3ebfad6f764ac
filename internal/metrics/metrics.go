// Package metrics records provider activity as Prometheus metrics.
//
// The CLI is short-lived, so nothing is served over HTTP: a Recorder keeps
// its own registry and can dump it in the text exposition format for the
// node_exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation results used as the "result" label.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
	ResultOK    = "ok"
)

// Recorder collects provider operation counts and latencies. A nil
// *Recorder records nothing.
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with a private registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretspec_provider_operations_total",
				Help: "Total number of provider operations by result",
			},
			[]string{"provider", "operation", "result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secretspec_provider_operation_duration_seconds",
				Help:    "Duration of provider operations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"provider", "operation"},
		),
	}
}

// Observe records one operation.
func (r *Recorder) Observe(provider, operation, result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(provider, operation, result).Inc()
	r.duration.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile atomically writes all metrics to path.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
