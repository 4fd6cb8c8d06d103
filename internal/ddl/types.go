// Package ddl holds a small, dialect-neutral model of a table definition.
// Dialect packages (internal/storage/postgres/ddl) render it to SQL.
package ddl

// ColumnDef describes a single column.
//
// Fields:
//   - Name: column name, unquoted; renderers quote it
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, TIMESTAMPTZ)
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression (e.g., 'anon', CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef is a table name plus an ordered list of columns. Schema may be
// empty, in which case the connection's search_path decides.
type TableDef struct {
	Schema  string
	Name    string
	Columns []ColumnDef
}

// PrimaryKey returns the primary-key column names in declaration order.
func (t TableDef) PrimaryKey() []string {
	var pk []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// ColumnNames returns the column names in declaration order.
func (t TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}
