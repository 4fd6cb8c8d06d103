// Package metrics records operational metrics from job runs through a
// pluggable backend. The default backend discards everything, so the
// Record functions are always safe to call.
//
// Concrete backends live in subpackages (prompush, datadog) so the rest of
// the module depends only on this package.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by the Record helpers.
const (
	StepTotal     = "etl_step_total"
	StepDuration  = "etl_step_duration_seconds"
	RowsTotal     = "etl_rows_total"
	JobTotal      = "etl_job_total"
	JobDuration   = "etl_job_duration_seconds"
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// LabelPipeline carries the job name. "job" is reserved by the Pushgateway
// grouping key, so it is never used as a metric label.
const LabelPipeline = "pipeline"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend and returns the previous one.
// Passing nil restores the no-op backend.
func SetBackend(b Backend) Backend {
	if b == nil {
		b = nopBackend{}
	}
	mu.Lock()
	defer mu.Unlock()
	prev := backend
	backend = b
	return prev
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error { return current().Flush() }

func status(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}

// RecordStep records the latency and outcome of one pipeline stage
// (load, an operation name, save).
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{LabelPipeline: job, "step": step, "status": status(err)}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow adds delta rows of the given kind ("loaded", "saved") for job.
// Non-positive deltas are ignored.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{LabelPipeline: job, "kind": kind})
}

// RecordJob records the outcome and total duration of one job run.
func RecordJob(job string, err error, d time.Duration) {
	lbls := Labels{LabelPipeline: job, "status": status(err)}
	b := current()
	b.IncCounter(JobTotal, 1, lbls)
	b.ObserveHistogram(JobDuration, d.Seconds(), lbls)
}
