// Package metrics exports execution counters in the Prometheus text format.
// A run writes them to a textfile picked up by the node exporter's textfile
// collector, since the process exits before any scrape could happen.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/canectors/dumpfilter/pkg/dump"
)

// Metrics holds the collectors for job executions.
type Metrics struct {
	registry *prometheus.Registry

	// Executions by job and final status
	Executions *prometheus.CounterVec

	// Lines by job and outcome: read, kept, dropped
	Lines *prometheus.CounterVec

	// Duration of each stage of the last execution
	StageDuration *prometheus.GaugeVec

	// Unix time of the last completed execution
	LastExecution *prometheus.GaugeVec
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Executions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dumpfilter_executions_total",
			Help: "Total job executions by final status",
		}, []string{"job", "status"}),

		Lines: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dumpfilter_lines_total",
			Help: "Lines processed by outcome",
		}, []string{"job", "outcome"}), // outcome: "read", "kept", "dropped"

		StageDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dumpfilter_stage_duration_seconds",
			Help: "Duration of each stage of the last execution",
		}, []string{"job", "stage"}),

		LastExecution: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dumpfilter_last_execution_timestamp_seconds",
			Help: "Unix time at which the last execution completed",
		}, []string{"job"}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Record adds an execution result to the collectors.
func (m *Metrics) Record(result *dump.ExecutionResult) {
	if m == nil || result == nil {
		return
	}
	job := result.JobID

	m.Executions.WithLabelValues(job, result.Status).Inc()
	m.Lines.WithLabelValues(job, "read").Add(float64(result.LinesRead))
	m.Lines.WithLabelValues(job, "kept").Add(float64(result.LinesKept))
	m.Lines.WithLabelValues(job, "dropped").Add(float64(result.LinesDropped))

	m.StageDuration.WithLabelValues(job, "input").Set(result.Timings.Input.Seconds())
	m.StageDuration.WithLabelValues(job, "filter").Set(result.Timings.Filter.Seconds())
	m.StageDuration.WithLabelValues(job, "output").Set(result.Timings.Output.Seconds())

	if !result.CompletedAt.IsZero() {
		m.LastExecution.WithLabelValues(job).Set(float64(result.CompletedAt.Unix()))
	}
}

// WriteTextfile writes every collected metric to path, replacing it atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
