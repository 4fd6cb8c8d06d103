// Package flatten rewrites tables so that no Struct or List<Struct> column
// remains.
//
// Each pass explodes every List<Struct> column (one row per element) and
// then unnests every Struct column in place, renaming fields that would
// collide with an existing column to "{field}_from_{struct}". Passes repeat
// until the table is flat. A pass budget bounds pathological input: when it
// runs out, the remaining nested columns are dropped and reported.
//
// Rows whose list is null or empty survive an explode as a single row with
// a null struct, so exploding never loses the rest of the row.
package flatten

import (
	"log"
	"strconv"
	"strings"

	"etlcore/internal/table"
)

// DefaultMaxIterations is the pass budget used when MaxIterations is zero.
const DefaultMaxIterations = 10

// Flattener holds flattening settings. The zero value is ready to use.
type Flattener struct {
	// MaxIterations bounds the number of explode/unnest passes.
	MaxIterations int

	// Logger receives the forced-drop warning. Nil means log.Default().
	Logger *log.Logger
}

// Report describes what a Flatten call did.
type Report struct {
	Iterations int
	Exploded   []string // List<Struct> columns exploded, in order
	Unnested   []string // Struct columns unnested, in order
	Dropped    []string // nested columns dropped at the pass budget
}

// Flatten flattens t with the default settings.
func Flatten(t *table.Table) (*table.Table, Report, error) {
	return Flattener{}.Flatten(t)
}

// Flatten returns a table without Struct or List<Struct> columns. An already
// flat table is returned as is.
func (f Flattener) Flatten(t *table.Table) (*table.Table, Report, error) {
	budget := f.MaxIterations
	if budget <= 0 {
		budget = DefaultMaxIterations
	}
	var rep Report
	for {
		structs, lists := partition(t)
		if len(structs) == 0 && len(lists) == 0 {
			return t, rep, nil
		}
		if rep.Iterations >= budget {
			out, dropped := dropNested(t)
			rep.Dropped = dropped
			f.logger().Printf("flatten: pass budget exhausted iterations=%d dropped=%s",
				rep.Iterations, strings.Join(dropped, ","))
			return out, rep, nil
		}
		rep.Iterations++

		var err error
		for _, name := range lists {
			if t, err = explode(t, name); err != nil {
				return nil, rep, err
			}
			rep.Exploded = append(rep.Exploded, name)
		}
		structs, _ = partition(t)
		for _, name := range structs {
			if t, err = unnest(t, name); err != nil {
				return nil, rep, err
			}
			rep.Unnested = append(rep.Unnested, name)
		}
	}
}

func (f Flattener) logger() *log.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return log.Default()
}

// partition returns the names of Struct and List<Struct> columns in column
// order.
func partition(t *table.Table) (structs, lists []string) {
	for _, c := range t.Columns() {
		switch {
		case table.IsStruct(c.Type):
			structs = append(structs, c.Name)
		case table.IsListOfStruct(c.Type):
			lists = append(lists, c.Name)
		}
	}
	return structs, lists
}

// explode replaces List<Struct> column name with its element type, one row
// per element. Null and empty lists yield one row with a null element.
func explode(t *table.Table, name string) (*table.Table, error) {
	col, _ := t.Column(name)
	indices := make([]int, 0, t.NumRows())
	elems := make([]any, 0, t.NumRows())
	for i, v := range col.Values {
		xs, _ := v.([]any)
		if len(xs) == 0 {
			indices = append(indices, i)
			elems = append(elems, nil)
			continue
		}
		for _, e := range xs {
			indices = append(indices, i)
			elems = append(elems, e)
		}
	}

	taken := t.Take(indices)
	cols := taken.Columns()
	pos := taken.ColumnIndex(name)
	cols[pos] = &table.Column{Name: name, Type: table.ListElem(col.Type), Values: elems}
	return table.New(cols...)
}

// unnest replaces Struct column name with one column per field, at the
// struct's position.
func unnest(t *table.Table, name string) (*table.Table, error) {
	col, _ := t.Column(name)
	fields := table.StructFields(col.Type)

	taken := make(map[string]bool, t.NumCols()+len(fields))
	for _, n := range t.ColumnNames() {
		if n != name {
			taken[n] = true
		}
	}
	suffix := "_from_" + strings.Trim(name, "_")

	newCols := make([]*table.Column, 0, len(fields))
	for _, fld := range fields {
		out := fld.Name
		if taken[out] {
			out = fld.Name + suffix
			for n := 2; taken[out]; n++ {
				out = fld.Name + suffix + "_" + strconv.Itoa(n)
			}
		}
		taken[out] = true

		vals := make([]any, len(col.Values))
		for i, v := range col.Values {
			if m, ok := v.(map[string]any); ok {
				vals[i] = m[fld.Name]
			}
		}
		newCols = append(newCols, &table.Column{Name: out, Type: fld.Type, Values: vals})
	}

	cols := make([]*table.Column, 0, t.NumCols()-1+len(newCols))
	for _, c := range t.Columns() {
		if c.Name == name {
			cols = append(cols, newCols...)
			continue
		}
		cols = append(cols, c)
	}
	return table.New(cols...)
}

// dropNested removes every remaining List or Struct column.
func dropNested(t *table.Table) (*table.Table, []string) {
	var names []string
	for _, c := range t.Columns() {
		if table.IsList(c.Type) || table.IsStruct(c.Type) {
			names = append(names, c.Name)
		}
	}
	return t.Drop(names...), names
}
