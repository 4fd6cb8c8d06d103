package postgres

import (
	"context"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"etlcore/internal/etlerr"
	"etlcore/internal/table"
)

// Querier runs a query. *pgxpool.Pool, *pgxpool.Conn and pgx.Tx satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Query runs sql and materializes the result. Column types come from the
// result's type OIDs; types without a fixed mapping (json, records, ranges)
// are inferred from the returned values.
func Query(ctx context.Context, q Querier, sql string, args ...any) (*table.Table, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, etlerr.Query("postgres query", describe(err))
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	vals := make([][]any, len(fds))
	for rows.Next() {
		row, err := rows.Values()
		if err != nil {
			return nil, etlerr.Query("postgres scan", err)
		}
		for i, v := range row {
			vals[i] = append(vals[i], fromPG(v))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, etlerr.Query("postgres rows", describe(err))
	}

	cols := make([]*table.Column, len(fds))
	for i, fd := range fds {
		values := vals[i]
		if values == nil {
			values = []any{}
		}
		dt := oidType(fd.DataTypeOID)
		if dt == nil {
			dt = table.InferType(values)
		}
		for j, v := range values {
			values[j] = table.Conform(v, dt)
		}
		cols[i] = &table.Column{Name: fd.Name, Type: dt, Values: values}
	}
	t, err := table.New(cols...)
	if err != nil {
		return nil, etlerr.Schemaf("postgres query", "%v", err)
	}
	return t, nil
}

// oidType maps a Postgres type OID to a column type, or nil when the type
// should be inferred from values.
func oidType(oid uint32) arrow.DataType {
	switch oid {
	case pgtype.BoolOID:
		return table.Bool
	case pgtype.Int2OID:
		return arrow.PrimitiveTypes.Int16
	case pgtype.Int4OID:
		return arrow.PrimitiveTypes.Int32
	case pgtype.Int8OID:
		return table.Int64
	case pgtype.OIDOID, pgtype.XIDOID, pgtype.CIDOID:
		return arrow.PrimitiveTypes.Uint32
	case pgtype.Float4OID:
		return arrow.PrimitiveTypes.Float32
	case pgtype.Float8OID:
		return table.Float64
	case pgtype.TextOID, pgtype.VarcharOID, pgtype.BPCharOID, pgtype.NameOID,
		pgtype.UUIDOID, pgtype.NumericOID, pgtype.InetOID, pgtype.CIDROID:
		return table.String
	case pgtype.ByteaOID:
		return table.Binary
	case pgtype.DateOID:
		return table.Date
	case pgtype.TimeOID:
		return table.Time
	case pgtype.TimestampOID:
		return table.Timestamp
	case pgtype.TimestamptzOID:
		return table.TimestampTZ
	case pgtype.IntervalOID:
		return table.Duration
	case pgtype.BoolArrayOID:
		return table.ListOf(table.Bool)
	case pgtype.Int2ArrayOID, pgtype.Int4ArrayOID, pgtype.Int8ArrayOID:
		return table.ListOf(table.Int64)
	case pgtype.Float4ArrayOID, pgtype.Float8ArrayOID:
		return table.ListOf(table.Float64)
	case pgtype.TextArrayOID, pgtype.VarcharArrayOID:
		return table.ListOf(table.String)
	default:
		return nil
	}
}

// fromPG converts pgx's decoded values into the table package's value
// representation. Infinite dates and timestamps become null.
func fromPG(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		s, err := x.Value()
		if err != nil {
			return nil
		}
		return s
	case pgtype.Time:
		return time.Duration(x.Microseconds) * time.Microsecond
	case pgtype.Interval:
		d := time.Duration(x.Microseconds) * time.Microsecond
		d += time.Duration(x.Days) * 24 * time.Hour
		d += time.Duration(x.Months) * 30 * 24 * time.Hour
		return d
	case pgtype.InfinityModifier:
		return nil
	case [16]byte:
		return uuid.UUID(x).String()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = fromPG(e)
		}
		return out
	default:
		return v
	}
}
