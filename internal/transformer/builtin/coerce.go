package builtin

import (
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"etlcore/internal/config"
	"etlcore/internal/etlerr"
	"etlcore/internal/table"
	"etlcore/internal/transformer"
)

// Default boolean vocabularies, lowercased. Includes Czech "ano"/"ne".
var (
	defaultTruthy = []string{"1", "t", "true", "yes", "y", "ano"}
	defaultFalsy  = []string{"0", "f", "false", "no", "n", "ne"}
)

var coerceTargets = map[string]arrow.DataType{
	"int":       table.Int64,
	"float":     table.Float64,
	"bool":      table.Bool,
	"date":      table.Date,
	"timestamp": table.TimestampTZ,
	"string":    table.String,
}

// Coerce converts columns to a target type: int, float, bool, date,
// timestamp or string. Values that do not parse become null and are counted
// in a log line per column.
type Coerce struct {
	Types  map[string]string // column -> target type
	Layout string            // time layout for date/timestamp; empty tries ISO-8601 forms
	Truthy []string
	Falsy  []string
}

func newCoerce(opts config.Options) (transformer.Operation, error) {
	types := opts.StringMap("types")
	if len(types) == 0 {
		return nil, etlerr.Configf("coerce", "option \"types\" must not be empty")
	}
	for col, typ := range types {
		if _, ok := coerceTargets[strings.ToLower(typ)]; !ok {
			return nil, etlerr.Configf("coerce", "column %q: unknown type %q", col, typ)
		}
		types[col] = strings.ToLower(typ)
	}
	return Coerce{
		Types:  types,
		Layout: opts.String("layout", ""),
		Truthy: opts.StringSlice("truthy"),
		Falsy:  opts.StringSlice("falsy"),
	}, nil
}

func (Coerce) Name() string { return "coerce" }

func (c Coerce) Apply(t *table.Table) (*table.Table, error) {
	names := make([]string, 0, len(c.Types))
	for n := range c.Types {
		if _, ok := t.Column(n); !ok {
			return nil, etlerr.Schemaf("coerce", "unknown column %q", n)
		}
		names = append(names, n)
	}
	sort.Strings(names)

	truthy := lowerSet(c.Truthy, defaultTruthy)
	falsy := lowerSet(c.Falsy, defaultFalsy)

	cols := t.Columns()
	for _, name := range names {
		typ := c.Types[name]
		dt, ok := coerceTargets[typ]
		if !ok {
			return nil, etlerr.Configf("coerce", "column %q: unknown type %q", name, typ)
		}
		i := t.ColumnIndex(name)
		src := cols[i]
		vals := make([]any, len(src.Values))
		failed := 0
		for j, v := range src.Values {
			if v == nil {
				continue
			}
			out := c.convert(v, typ, truthy, falsy)
			if out == nil {
				failed++
			}
			vals[j] = out
		}
		if failed > 0 {
			log.Printf("coerce: unparsable values set to null column=%s type=%s count=%d", name, typ, failed)
		}
		cols[i] = &table.Column{Name: name, Type: dt, Values: vals}
	}
	return t.WithColumns(cols)
}

func (c Coerce) convert(v any, typ string, truthy, falsy map[string]struct{}) any {
	s, isStr := v.(string)
	if isStr {
		s = strings.TrimSpace(s)
		if s == "" && typ != "string" {
			return nil
		}
	}
	switch typ {
	case "int":
		if isStr {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i
			}
			return nil
		}
		return table.Conform(v, table.Int64)
	case "float":
		if isStr {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
			return nil
		}
		return table.Conform(v, table.Float64)
	case "bool":
		if isStr {
			ls := strings.ToLower(s)
			if _, ok := truthy[ls]; ok {
				return true
			}
			if _, ok := falsy[ls]; ok {
				return false
			}
			return nil
		}
		return table.Conform(v, table.Bool)
	case "date":
		ts, ok := c.parseTime(v)
		if !ok {
			return nil
		}
		y, m, d := ts.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case "timestamp":
		ts, ok := c.parseTime(v)
		if !ok {
			return nil
		}
		return ts.UTC()
	default:
		return table.Conform(v, table.String)
	}
}

func (c Coerce) parseTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		x = strings.TrimSpace(x)
		if c.Layout != "" {
			ts, err := time.Parse(c.Layout, x)
			return ts, err == nil
		}
		return table.ParseTime(x)
	}
	return time.Time{}, false
}

func lowerSet(vals, def []string) map[string]struct{} {
	if len(vals) == 0 {
		vals = def
	}
	set := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}
