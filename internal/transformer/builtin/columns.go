package builtin

import (
	"etlcore/internal/config"
	"etlcore/internal/etlerr"
	"etlcore/internal/table"
	"etlcore/internal/transformer"
)

// Rename renames columns (old -> new). Every old name must exist.
type Rename struct {
	Mapping map[string]string
}

func newRename(opts config.Options) (transformer.Operation, error) {
	m := opts.StringMap("mapping")
	if len(m) == 0 {
		return nil, etlerr.Configf("rename", "option \"mapping\" must not be empty")
	}
	for from, to := range m {
		if from == "" || to == "" {
			return nil, etlerr.Configf("rename", "empty name in mapping %q -> %q", from, to)
		}
	}
	return Rename{Mapping: m}, nil
}

func (Rename) Name() string { return "rename" }

func (r Rename) Apply(t *table.Table) (*table.Table, error) {
	for from := range r.Mapping {
		if _, ok := t.Column(from); !ok {
			return nil, etlerr.Schemaf("rename", "unknown column %q", from)
		}
	}
	out, err := t.Rename(r.Mapping)
	if err != nil {
		return nil, etlerr.Schemaf("rename", "%v", err)
	}
	return out, nil
}

// Select keeps only the listed columns, in the listed order.
type Select struct {
	Columns []string
}

func newSelect(opts config.Options) (transformer.Operation, error) {
	cols, err := requireStrings("select", opts, "columns")
	if err != nil {
		return nil, err
	}
	return Select{Columns: cols}, nil
}

func (Select) Name() string { return "select" }

func (s Select) Apply(t *table.Table) (*table.Table, error) {
	out, err := t.Select(s.Columns...)
	if err != nil {
		return nil, etlerr.Schemaf("select", "%v", err)
	}
	return out, nil
}

// Drop removes the listed columns. Names that are not present are ignored.
type Drop struct {
	Columns []string
}

func newDrop(opts config.Options) (transformer.Operation, error) {
	cols, err := requireStrings("drop", opts, "columns")
	if err != nil {
		return nil, err
	}
	return Drop{Columns: cols}, nil
}

func (Drop) Name() string { return "drop" }

func (d Drop) Apply(t *table.Table) (*table.Table, error) { return t.Drop(d.Columns...), nil }
