// Package table implements the in-memory columnar data model shared by
// sources, operations and sinks.
//
// A Table is an ordered list of named, typed columns of equal length. Column
// types are Apache Arrow data types so that the Parquet codec and the Postgres
// type mapping agree on one vocabulary. Values are plain Go values:
//
//	integers           int8 .. int64, uint8 .. uint64
//	floats             float32, float64
//	BOOL               bool
//	STRING             string
//	BINARY             []byte
//	DATE32, TIMESTAMP  time.Time
//	TIME64, DURATION   time.Duration (time of day is measured from midnight)
//	DECIMAL128         string, canonical decimal text
//	LIST               []any
//	STRUCT             map[string]any keyed by field name
//
// nil is null for every type. Tables are treated as immutable values: every
// method that changes shape returns a new *Table and shares untouched column
// slices with the receiver.
package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Column is a named, typed vector of values.
type Column struct {
	Name   string
	Type   arrow.DataType
	Values []any
}

// Len returns the number of values in the column.
func (c *Column) Len() int { return len(c.Values) }

// Table is a rectangular, ordered set of columns.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New builds a Table from columns. It fails if two columns share a name or
// if the columns have different lengths. A nil Type defaults to arrow.Null.
func New(cols ...*Column) (*Table, error) {
	t := &Table{
		cols:  make([]*Column, 0, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("table: column %d is nil", i)
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("table: duplicate column %q", c.Name)
		}
		if i == 0 {
			t.rows = len(c.Values)
		} else if len(c.Values) != t.rows {
			return nil, fmt.Errorf("table: column %q has %d rows, want %d", c.Name, len(c.Values), t.rows)
		}
		if c.Type == nil {
			c = &Column{Name: c.Name, Type: arrow.Null, Values: c.Values}
		}
		t.index[c.Name] = len(t.cols)
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// MustNew is New for static fixtures; it panics on error.
func MustNew(cols ...*Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// Empty returns a table with no columns and no rows.
func Empty() *Table { return MustNew() }

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.cols) }

// Columns returns the columns in order. The slice is a copy; the columns are
// shared and must not be mutated.
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.cols))
	copy(out, t.cols)
	return out
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Row returns the values of row i in column order.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.cols))
	for j, c := range t.cols {
		out[j] = c.Values[i]
	}
	return out
}

// Slice returns rows [offset, offset+n) as a new table sharing the backing
// arrays. The range is clamped to the table bounds.
func (t *Table) Slice(offset, n int) *Table {
	if offset < 0 {
		offset = 0
	}
	if offset > t.rows {
		offset = t.rows
	}
	end := offset + n
	if n < 0 || end > t.rows {
		end = t.rows
	}
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = &Column{Name: c.Name, Type: c.Type, Values: c.Values[offset:end:end]}
	}
	return MustNew(cols...)
}

// Take returns a new table whose rows are t's rows at the given indices, in
// that order. Indices may repeat.
func (t *Table) Take(indices []int) *Table {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		vals := make([]any, len(indices))
		for j, idx := range indices {
			vals[j] = c.Values[idx]
		}
		cols[i] = &Column{Name: c.Name, Type: c.Type, Values: vals}
	}
	return MustNew(cols...)
}

// WithColumns returns a new table with the given columns replacing t's.
func (t *Table) WithColumns(cols []*Column) (*Table, error) {
	return New(cols...)
}

// Drop returns a table without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	cols := make([]*Column, 0, len(t.cols))
	for _, c := range t.cols {
		if _, ok := drop[c.Name]; ok {
			continue
		}
		cols = append(cols, c)
	}
	if len(cols) == 0 {
		return Empty()
	}
	return MustNew(cols...)
}

// Select returns a table with only the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return nil, fmt.Errorf("table: unknown column %q", n)
		}
		cols = append(cols, c)
	}
	return New(cols...)
}

// Rename returns a table with columns renamed per mapping (old -> new).
// Renaming onto an existing name is an error.
func (t *Table) Rename(mapping map[string]string) (*Table, error) {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		if to, ok := mapping[c.Name]; ok && to != "" {
			cols[i] = &Column{Name: to, Type: c.Type, Values: c.Values}
			continue
		}
		cols[i] = c
	}
	return New(cols...)
}

// Schema returns the arrow schema describing t's columns. Every field is
// nullable.
func (t *Table) Schema() *arrow.Schema {
	fields := make([]arrow.Field, len(t.cols))
	for i, c := range t.cols {
		fields[i] = arrow.Field{Name: c.Name, Type: c.Type, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}
