// Package sqldb runs queries through database/sql and materializes the
// result as a table. Backend packages (sqlite, mysql, mssql) wrap it with
// their driver and any value conversions the driver needs.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"etlcore/internal/etlerr"
	"etlcore/internal/table"
)

// ValueFunc converts a scanned value given the column's declared database
// type name (upper case, as reported by the driver). It returns the value to
// use and whether it handled v.
type ValueFunc func(dbType string, v any) (any, bool)

// Open opens driver with dsn and pings it to fail fast on bad DSNs.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s: DSN must not be empty", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping: %w", driver, err)
	}
	return db, nil
}

// Conn is a storage.Conn over a *sql.DB.
type Conn struct {
	DB      *sql.DB
	Name    string    // registered kind
	Convert ValueFunc // optional driver-specific conversions
}

// Kind returns the kind the connection was registered under.
func (c *Conn) Kind() string { return c.Name }

// QueryTable runs query and materializes the result.
func (c *Conn) QueryTable(ctx context.Context, query string) (*table.Table, error) {
	return Query(ctx, c.DB, query, c.Convert)
}

// Close closes the underlying pool.
func (c *Conn) Close() { _ = c.DB.Close() }

// Querier runs a query. *sql.DB, *sql.Conn and *sql.Tx satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Query runs query and materializes the result. Column types come from the
// declared database type names; columns without a recognizable declared
// type (SQLite expressions, for instance) are inferred from their values.
func Query(ctx context.Context, q Querier, query string, convert ValueFunc) (*table.Table, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, etlerr.Query("sql query", err)
	}
	defer rows.Close()

	cts, err := rows.ColumnTypes()
	if err != nil {
		return nil, etlerr.Query("sql columns", err)
	}
	dbTypes := make([]string, len(cts))
	for i, ct := range cts {
		dbTypes[i] = strings.ToUpper(ct.DatabaseTypeName())
	}

	vals := make([][]any, len(cts))
	dest := make([]any, len(cts))
	ptrs := make([]any, len(cts))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, etlerr.Query("sql scan", err)
		}
		for i, v := range dest {
			vals[i] = append(vals[i], normalize(dbTypes[i], v, convert))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, etlerr.Query("sql rows", err)
	}

	cols := make([]*table.Column, len(cts))
	for i, ct := range cts {
		values := vals[i]
		if values == nil {
			values = []any{}
		}
		dt := DeclaredType(dbTypes[i])
		if dt == nil {
			dt = table.InferType(values)
		}
		for j, v := range values {
			values[j] = table.Conform(v, dt)
		}
		cols[i] = &table.Column{Name: ct.Name(), Type: dt, Values: values}
	}
	t, err := table.New(cols...)
	if err != nil {
		return nil, etlerr.Schemaf("sql query", "%v", err)
	}
	return t, nil
}

// normalize applies the driver hook and turns text returned as []byte into
// string for every non-binary column.
func normalize(dbType string, v any, convert ValueFunc) any {
	if v == nil {
		return nil
	}
	if convert != nil {
		if out, ok := convert(dbType, v); ok {
			return out
		}
	}
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	dt := DeclaredType(dbType)
	switch {
	case dt != nil && dt.ID() == arrow.BINARY:
		return append([]byte(nil), b...)
	case dt != nil && dt.ID() == arrow.BOOL && len(b) == 1 && b[0] <= 1:
		return b[0] == 1
	default:
		return string(b)
	}
}

// DeclaredType maps a declared database type name to a column type, or nil
// when the name says nothing useful. Length and precision suffixes are
// ignored ("VARCHAR(20)" is VARCHAR).
func DeclaredType(name string) arrow.DataType {
	name = strings.ToUpper(strings.TrimSpace(name))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	switch name {
	case "":
		return nil
	case "UNSIGNED BIGINT":
		return arrow.PrimitiveTypes.Uint64
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "MEDIUMINT",
		"INT2", "INT4", "INT8", "UNSIGNED INT", "UNSIGNED SMALLINT", "UNSIGNED TINYINT",
		"UNSIGNED MEDIUMINT", "YEAR":
		return table.Int64
	case "REAL", "FLOAT", "DOUBLE", "DOUBLE PRECISION", "FLOAT4", "FLOAT8":
		return table.Float64
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		return table.String
	case "BOOL", "BOOLEAN", "BIT":
		return table.Bool
	case "CHAR", "VARCHAR", "TEXT", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT", "NCHAR",
		"NVARCHAR", "NTEXT", "CLOB", "JSON", "UNIQUEIDENTIFIER", "ENUM", "SET", "TIME", "XML":
		return table.String
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY", "BYTEA", "IMAGE":
		return table.Binary
	case "DATE":
		return table.Date
	case "DATETIME", "DATETIME2", "SMALLDATETIME", "TIMESTAMP":
		return table.Timestamp
	case "DATETIMEOFFSET", "TIMESTAMPTZ":
		return table.TimestampTZ
	default:
		return nil
	}
}
