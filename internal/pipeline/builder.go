package pipeline

import (
	"etlcore/internal/etlerr"
	"etlcore/internal/sink"
	"etlcore/internal/source"
	"etlcore/internal/table"
	"etlcore/internal/transformer"
)

// Builder accumulates a source, operations and a sink.
type Builder struct {
	source source.Source
	ops    transformer.Chain
	sink   sink.Sink
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Source(s source.Source) *Builder {
	b.source = s
	return b
}

func (b *Builder) Sink(s sink.Sink) *Builder {
	b.sink = s
	return b
}

// Then appends operations to the chain.
func (b *Builder) Then(ops ...transformer.Operation) *Builder {
	b.ops = append(b.ops, ops...)
	return b
}

// ThenFunc appends a plain function as a named operation.
func (b *Builder) ThenFunc(name string, fn func(*table.Table) (*table.Table, error)) *Builder {
	return b.Then(transformer.Func(name, fn))
}

// Build returns the pipeline. A missing source or sink, or a nil
// operation, is a config error. Later changes to b do not affect the
// returned pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if b.source == nil {
		return nil, etlerr.Configf("pipeline", "source is required")
	}
	if b.sink == nil {
		return nil, etlerr.Configf("pipeline", "sink is required")
	}
	for i, op := range b.ops {
		if op == nil {
			return nil, etlerr.Configf("pipeline", "operation %d is nil", i)
		}
	}
	return &Pipeline{
		source: b.source,
		ops:    append(transformer.Chain(nil), b.ops...),
		sink:   b.sink,
	}, nil
}
