package table

import (
	"encoding/hex"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

// FormatValue renders v as Postgres-compatible text for a column of type dt.
// ok is false when v is null. Nested values (lists, structs, maps) are
// rendered as JSON.
func FormatValue(dt arrow.DataType, v any) (s string, ok bool) {
	if v == nil {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		if x {
			return "t", true
		}
		return "f", true
	case []byte:
		return `\x` + hex.EncodeToString(x), true
	case int:
		return strconv.FormatInt(int64(x), 10), true
	case int8:
		return strconv.FormatInt(int64(x), 10), true
	case int16:
		return strconv.FormatInt(int64(x), 10), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint:
		return strconv.FormatUint(uint64(x), 10), true
	case uint8:
		return strconv.FormatUint(uint64(x), 10), true
	case uint16:
		return strconv.FormatUint(uint64(x), 10), true
	case uint32:
		return strconv.FormatUint(uint64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float32:
		return formatFloat(float64(x), 32), true
	case float64:
		return formatFloat(x, 64), true
	case json.Number:
		return x.String(), true
	case time.Time:
		return formatTime(dt, x), true
	case time.Duration:
		if dt != nil && (dt.ID() == arrow.TIME32 || dt.ID() == arrow.TIME64) {
			return time.Time{}.Add(x).Format("15:04:05.999999"), true
		}
		return strconv.FormatInt(x.Microseconds(), 10) + " microseconds", true
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return toText(x), true
		}
		return string(b), true
	}
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}

func formatTime(dt arrow.DataType, t time.Time) string {
	if dt == nil {
		return t.Format(time.RFC3339Nano)
	}
	switch dt.ID() {
	case arrow.DATE32, arrow.DATE64:
		return t.Format("2006-01-02")
	case arrow.TIMESTAMP:
		if ts, ok := dt.(*arrow.TimestampType); ok && ts.TimeZone == "" {
			return t.Format("2006-01-02 15:04:05.999999")
		}
		return t.UTC().Format("2006-01-02 15:04:05.999999Z07:00")
	}
	return t.Format(time.RFC3339Nano)
}
