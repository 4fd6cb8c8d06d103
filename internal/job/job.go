// Package job runs named pipelines and joins the results of concurrent
// runs.
package job

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"etlcore/internal/metrics"
	"etlcore/internal/pipeline"
)

// Runner is what a Job executes. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context) (pipeline.Stats, error)
}

// Job is a named pipeline. It holds no state between runs.
type Job struct {
	name string
	p    Runner
}

// New returns a Job. The name identifies runs in logs and metrics.
func New(name string, p Runner) *Job { return &Job{name: name, p: p} }

// Name returns the job name.
func (j *Job) Name() string { return j.name }

// Error is a failed run of the named job.
type Error struct {
	Job   string
	RunID string
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("job %s: %v", e.Job, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Result is the outcome of one run. Err is nil on success.
type Result struct {
	Job      string
	RunID    string
	Stats    pipeline.Stats
	Duration time.Duration
	Err      *Error
}

// OK reports whether the run succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Run executes the pipeline once. Failures are returned in Result.Err,
// never retried.
func (j *Job) Run(ctx context.Context) Result {
	runID := uuid.NewString()
	log.Printf("job: start job=%s run=%s", j.name, runID)

	start := time.Now()
	var (
		st  pipeline.Stats
		err error
	)
	if j.p == nil {
		err = fmt.Errorf("no pipeline")
	} else {
		st, err = j.p.Run(ctx)
	}
	d := time.Since(start)

	for _, s := range st.Stages {
		metrics.RecordStep(j.name, s.Name, s.Err, s.Duration)
	}
	metrics.RecordRow(j.name, "loaded", int64(st.RowsLoaded))
	metrics.RecordRow(j.name, "saved", int64(st.RowsSaved))
	metrics.RecordJob(j.name, err, d)

	res := Result{Job: j.name, RunID: runID, Stats: st, Duration: d}
	if err != nil {
		res.Err = &Error{Job: j.name, RunID: runID, Err: err}
		log.Printf("job: failed job=%s run=%s duration=%s err=%v", j.name, runID, d.Round(time.Millisecond), err)
		return res
	}
	log.Printf("job: done job=%s run=%s loaded=%d saved=%d duration=%s",
		j.name, runID, st.RowsLoaded, st.RowsSaved, d.Round(time.Millisecond))
	return res
}

// RunAll runs every job concurrently, at most parallelism at a time
// (unbounded when parallelism <= 0), and returns all results in input
// order once the slowest job finishes. A failing job never cancels the
// others.
func RunAll(ctx context.Context, jobs []*Job, parallelism int) []Result {
	results := make([]Result, len(jobs))
	var g errgroup.Group
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			results[i] = j.Run(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
