// Package ddl contains Postgres-specific helpers for generating DDL: the
// Arrow to Postgres type mapping, identifier quoting and CREATE TABLE
// rendering for a generic ddl.TableDef.
package ddl

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// MapType returns the Postgres column type for an Arrow data type. It is
// total: anything without a closer match becomes TEXT.
//
//	int8/int16/uint8          -> SMALLINT
//	int32/uint16              -> INTEGER
//	int64/uint32              -> BIGINT
//	uint64                    -> NUMERIC(20,0)
//	float16/float32           -> REAL
//	float64                   -> DOUBLE PRECISION
//	decimal(p,s)              -> NUMERIC(p,s), NUMERIC when p is unknown
//	timestamp[tz]             -> TIMESTAMPTZ, TIMESTAMP without a zone
//	duration/interval         -> INTERVAL
//	list/struct/map           -> JSONB
func MapType(dt arrow.DataType) string {
	if dt == nil {
		return "TEXT"
	}
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.UINT8:
		return "SMALLINT"
	case arrow.INT32, arrow.UINT16:
		return "INTEGER"
	case arrow.INT64, arrow.UINT32:
		return "BIGINT"
	case arrow.UINT64:
		return "NUMERIC(20,0)"
	case arrow.FLOAT16, arrow.FLOAT32:
		return "REAL"
	case arrow.FLOAT64:
		return "DOUBLE PRECISION"
	case arrow.BOOL:
		return "BOOLEAN"
	case arrow.STRING, arrow.LARGE_STRING, arrow.STRING_VIEW:
		return "TEXT"
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.BINARY_VIEW, arrow.FIXED_SIZE_BINARY:
		return "BYTEA"
	case arrow.DATE32, arrow.DATE64:
		return "DATE"
	case arrow.TIME32, arrow.TIME64:
		return "TIME"
	case arrow.TIMESTAMP:
		if ts, ok := dt.(*arrow.TimestampType); ok && ts.TimeZone != "" {
			return "TIMESTAMPTZ"
		}
		return "TIMESTAMP"
	case arrow.DURATION, arrow.INTERVAL_MONTHS, arrow.INTERVAL_DAY_TIME, arrow.INTERVAL_MONTH_DAY_NANO:
		return "INTERVAL"
	case arrow.DECIMAL32, arrow.DECIMAL64, arrow.DECIMAL128, arrow.DECIMAL256:
		if d, ok := dt.(arrow.DecimalType); ok && d.GetPrecision() > 0 {
			return fmt.Sprintf("NUMERIC(%d,%d)", d.GetPrecision(), d.GetScale())
		}
		return "NUMERIC"
	case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST, arrow.LIST_VIEW, arrow.LARGE_LIST_VIEW,
		arrow.STRUCT, arrow.MAP:
		return "JSONB"
	default:
		return "TEXT"
	}
}
