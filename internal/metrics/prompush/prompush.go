// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. Collectors live in a private registry that Flush pushes
// to the gateway under one grouping job.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"etlcore/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	group      string // Pushgateway "job" grouping key
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // etl_step_total{pipeline,step,status}
	stepDuration *prometheus.SummaryVec // etl_step_duration_seconds{pipeline,step,status}
	rowCounter   *prometheus.CounterVec // etl_rows_total{pipeline,kind}
	jobCounter   *prometheus.CounterVec // etl_job_total{pipeline,status}
	jobDuration  *prometheus.HistogramVec
}

// NewBackend registers the collectors. group is the Pushgateway job
// grouping key; it defaults to "etlcore". ETL job names travel as the
// "pipeline" label because the push client rejects metrics that carry their
// own "job" label.
func NewBackend(group, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if group == "" {
		group = "etlcore"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		group:      group,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline stage executions by job, step and status.",
		}, []string{"pipeline", "step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Pipeline stage duration in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"pipeline", "step", "status"}),
		rowCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows loaded from sources and saved to sinks.",
		}, []string{"pipeline", "kind"}),
		jobCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.JobTotal,
			Help: "Job runs by status.",
		}, []string{"pipeline", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.JobDuration,
			Help:    "Job run duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		}, []string{"pipeline", "status"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter": b.stepCounter,
		"step summary": b.stepDuration,
		"row counter":  b.rowCounter,
		"job counter":  b.jobCounter,
		"job duration": b.jobDuration,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.stepCounter.WithLabelValues(labels[metrics.LabelPipeline], labels["step"], labels["status"]).Add(delta)
	case metrics.RowsTotal:
		b.rowCounter.WithLabelValues(labels[metrics.LabelPipeline], labels["kind"]).Add(delta)
	case metrics.JobTotal:
		b.jobCounter.WithLabelValues(labels[metrics.LabelPipeline], labels["status"]).Add(delta)
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.StepDuration:
		b.stepDuration.WithLabelValues(labels[metrics.LabelPipeline], labels["step"], labels["status"]).Observe(value)
	case metrics.JobDuration:
		b.jobDuration.WithLabelValues(labels[metrics.LabelPipeline], labels["status"]).Observe(value)
	}
}

// Flush pushes the current registry to the Pushgateway, replacing the
// group's previous metrics.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.group).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}
