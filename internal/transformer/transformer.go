// Package transformer defines table operations and the ordered chain that
// applies them.
package transformer

import (
	"fmt"

	"etlcore/internal/etlerr"
	"etlcore/internal/table"
)

// Operation is a named, pure table transform. Apply must not modify its
// input; it returns a new table or the input itself when nothing changes.
type Operation interface {
	Name() string
	Apply(t *table.Table) (*table.Table, error)
}

// Func adapts a plain function to an Operation.
func Func(name string, fn func(*table.Table) (*table.Table, error)) Operation {
	return funcOp{name: name, fn: fn}
}

type funcOp struct {
	name string
	fn   func(*table.Table) (*table.Table, error)
}

func (f funcOp) Name() string                               { return f.name }
func (f funcOp) Apply(t *table.Table) (*table.Table, error) { return f.fn(t) }

// Chain is an ordered list of operations.
type Chain []Operation

// Apply runs each operation on the previous one's output. The first failure
// stops the chain and is returned wrapped with the operation's name and
// position.
func (c Chain) Apply(in *table.Table) (*table.Table, error) {
	out := in
	for i, op := range c {
		next, err := Step(i, op, out)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

// Step applies op, the i-th operation of a chain, to t. Failures, including
// a nil result, come back as *OpError.
func Step(i int, op Operation, t *table.Table) (*table.Table, error) {
	next, err := op.Apply(t)
	if err == nil && next == nil {
		err = etlerr.Schemaf(op.Name(), "operation returned no table")
	}
	if err != nil {
		return nil, &OpError{Index: i, Op: op.Name(), Err: err}
	}
	return next, nil
}

// Names lists the operation names in order.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, op := range c {
		names[i] = op.Name()
	}
	return names
}

// OpError reports which operation in a chain failed.
type OpError struct {
	Index int
	Op    string
	Err   error
}

func (e *OpError) Error() string { return fmt.Sprintf("operation %d (%s): %v", e.Index, e.Op, e.Err) }

func (e *OpError) Unwrap() error { return e.Err }
