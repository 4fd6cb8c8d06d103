package csv

import (
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"etlcore/internal/table"
)

var (
	dateLayouts = []string{
		"2006-01-02",
		"02.01.2006",
		"2006/01/02",
	}
	naiveTimestampLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
	}
	zonedTimestampLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
	}
)

// inferColumn picks the narrowest type every non-empty value satisfies:
// integer, boolean, float, date, timestamp, then string. A column with no
// values at all is typed null.
func inferColumn(values []any) arrow.DataType {
	nonEmpty := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) == 0 {
		return table.Null
	}
	switch {
	case allMatch(nonEmpty, isInt):
		return table.Int64
	case allMatch(nonEmpty, isBool):
		return table.Bool
	case allMatch(nonEmpty, isFloat):
		return table.Float64
	case allMatch(nonEmpty, isDate):
		return table.Date
	case allMatch(nonEmpty, isNaiveTimestamp):
		return table.Timestamp
	case allMatch(nonEmpty, isTimestamp):
		return table.TimestampTZ
	}
	return table.String
}

// convert parses s according to dt; inferColumn guarantees it succeeds.
func convert(s string, dt arrow.DataType) any {
	switch dt.ID() {
	case arrow.INT64:
		i, _ := strconv.ParseInt(s, 10, 64)
		return i
	case arrow.BOOL:
		return parseBool(s)
	case arrow.FLOAT64:
		f, _ := strconv.ParseFloat(s, 64)
		return f
	case arrow.DATE32:
		t, _ := parseAny(s, dateLayouts)
		return t
	case arrow.TIMESTAMP:
		if t, ok := parseAny(s, naiveTimestampLayouts); ok {
			return t
		}
		t, _ := parseAny(s, zonedTimestampLayouts)
		return t.UTC()
	}
	return s
}

func allMatch(vals []string, fn func(string) bool) bool {
	for _, v := range vals {
		if !fn(v) {
			return false
		}
	}
	return true
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isFloat(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func isBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false", "t", "f", "yes", "no", "y", "n":
		return true
	}
	return false
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y":
		return true
	}
	return false
}

func isDate(s string) bool {
	_, ok := parseAny(s, dateLayouts)
	return ok
}

func isNaiveTimestamp(s string) bool {
	_, ok := parseAny(s, naiveTimestampLayouts)
	return ok
}

func isTimestamp(s string) bool {
	if isNaiveTimestamp(s) {
		return true
	}
	_, ok := parseAny(s, zonedTimestampLayouts)
	return ok
}

func parseAny(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
