// Package pipeline runs one source through an ordered chain of operations
// into one sink.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"etlcore/internal/sink"
	"etlcore/internal/source"
	"etlcore/internal/table"
	"etlcore/internal/transformer"
)

// Stage names used in Stats besides operation names.
const (
	StageLoad = "load"
	StageSave = "save"
)

// Stage is the timing of one pipeline stage.
type Stage struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Stats describes one run. Stages lists every stage that ran, in order,
// including the one that failed.
type Stats struct {
	RowsLoaded int
	RowsSaved  int
	Stages     []Stage
}

// Pipeline is immutable once built and may be run more than once.
type Pipeline struct {
	source source.Source
	ops    transformer.Chain
	sink   sink.Sink
}

// Source returns the pipeline's source.
func (p *Pipeline) Source() source.Source { return p.source }

// Sink returns the pipeline's sink.
func (p *Pipeline) Sink() sink.Sink { return p.sink }

// Operations returns a copy of the operation chain.
func (p *Pipeline) Operations() transformer.Chain {
	return append(transformer.Chain(nil), p.ops...)
}

// Test seams.
var (
	loadSource = source.Load
	saveSink   = sink.Save
)

// Run loads the source, applies each operation to the previous result and
// saves the final table. The first failure stops the run; later stages do
// not execute.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	var st Stats

	start := time.Now()
	t, err := loadSource(ctx, p.source)
	st.Stages = append(st.Stages, Stage{Name: StageLoad, Duration: time.Since(start), Err: err})
	if err != nil {
		return st, fmt.Errorf("load %s: %w", p.source, err)
	}
	if t == nil {
		t = table.Empty()
	}
	st.RowsLoaded = t.NumRows()

	for i, op := range p.ops {
		if err := ctx.Err(); err != nil {
			return st, fmt.Errorf("before operation %d (%s): %w", i, op.Name(), err)
		}
		start = time.Now()
		next, err := transformer.Step(i, op, t)
		st.Stages = append(st.Stages, Stage{Name: op.Name(), Duration: time.Since(start), Err: err})
		if err != nil {
			return st, err
		}
		t = next
	}

	if err := ctx.Err(); err != nil {
		return st, fmt.Errorf("before save: %w", err)
	}
	start = time.Now()
	err = saveSink(ctx, p.sink, t)
	st.Stages = append(st.Stages, Stage{Name: StageSave, Duration: time.Since(start), Err: err})
	if err != nil {
		return st, fmt.Errorf("save %s: %w", p.sink, err)
	}
	st.RowsSaved = t.NumRows()
	return st, nil
}
