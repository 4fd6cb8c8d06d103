package ddl

import (
	"fmt"

	gddl "etlcore/internal/ddl"
	"etlcore/internal/table"
)

// FromTable derives a table definition from t's columns, mapping each Arrow
// type with MapType. Columns named in pk become the primary key; every other
// column is nullable. A key that is not a column of t is an error.
func FromTable(schema, name string, t *table.Table, pk []string) (gddl.TableDef, error) {
	keys := make(map[string]bool, len(pk))
	for _, k := range pk {
		if _, ok := t.Column(k); !ok {
			return gddl.TableDef{}, fmt.Errorf("postgres ddl: primary key column %q not in table", k)
		}
		keys[k] = true
	}

	defs := make([]gddl.ColumnDef, 0, t.NumCols())
	for _, c := range t.Columns() {
		defs = append(defs, gddl.ColumnDef{
			Name:       c.Name,
			SQLType:    MapType(c.Type),
			Nullable:   !keys[c.Name],
			PrimaryKey: keys[c.Name],
		})
	}
	return gddl.TableDef{Schema: schema, Name: name, Columns: defs}, nil
}
