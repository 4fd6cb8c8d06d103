package builtin

import (
	"etlcore/internal/config"
	"etlcore/internal/etlerr"
	"etlcore/internal/table"
	"etlcore/internal/transformer"
)

// Require removes any row with a null or empty-string value in one of
// Columns.
type Require struct {
	Columns []string
}

func newRequire(opts config.Options) (transformer.Operation, error) {
	cols, err := requireStrings("require", opts, "columns")
	if err != nil {
		return nil, err
	}
	return Require{Columns: cols}, nil
}

func (Require) Name() string { return "require" }

func (r Require) Apply(t *table.Table) (*table.Table, error) {
	cols := make([]*table.Column, len(r.Columns))
	for i, name := range r.Columns {
		c, ok := t.Column(name)
		if !ok {
			return nil, etlerr.Schemaf("require", "unknown column %q", name)
		}
		cols[i] = c
	}

	keep := make([]int, 0, t.NumRows())
rows:
	for i := 0; i < t.NumRows(); i++ {
		for _, c := range cols {
			if v := c.Values[i]; v == nil || v == "" {
				continue rows
			}
		}
		keep = append(keep, i)
	}
	if len(keep) == t.NumRows() {
		return t, nil
	}
	return t.Take(keep), nil
}
