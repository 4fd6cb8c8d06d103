package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

// maxInferDepth bounds recursion through nested values. Anything deeper is
// typed as a string holding its JSON text.
const maxInferDepth = 64

// Object is a struct value that remembers its key order. Decoders produce it
// so that inferred struct fields and top-level columns follow document order;
// Conform turns it into the map[string]any representation.
type Object struct {
	Keys   []string
	Values map[string]any
}

// NewObject returns an empty Object.
func NewObject() *Object { return &Object{Values: map[string]any{}} }

// Set appends key (if new) and stores v.
func (o *Object) Set(key string, v any) {
	if _, ok := o.Values[key]; !ok {
		o.Keys = append(o.Keys, key)
	}
	o.Values[key] = v
}

// MarshalJSON writes the object with keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.Values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// InferType returns one arrow type able to hold every value. Nulls never
// widen a type; integers and floats unify to float64; structs unify to the
// union of their fields; lists unify element-wise; any other conflict yields
// string.
func InferType(values []any) arrow.DataType {
	dt := Null
	for _, v := range values {
		dt = unify(dt, typeOf(v, 0))
	}
	return dt
}

func typeOf(v any, depth int) arrow.DataType {
	if depth > maxInferDepth {
		return String
	}
	switch x := v.(type) {
	case nil:
		return Null
	case bool:
		return Bool
	case string:
		return String
	case []byte:
		return Binary
	case int8:
		return arrow.PrimitiveTypes.Int8
	case int16:
		return arrow.PrimitiveTypes.Int16
	case int32:
		return arrow.PrimitiveTypes.Int32
	case int, int64:
		return Int64
	case uint8:
		return arrow.PrimitiveTypes.Uint8
	case uint16:
		return arrow.PrimitiveTypes.Uint16
	case uint32:
		return arrow.PrimitiveTypes.Uint32
	case uint, uint64:
		return arrow.PrimitiveTypes.Uint64
	case float32:
		return arrow.PrimitiveTypes.Float32
	case float64:
		return Float64
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return Int64
		}
		return Float64
	case time.Time:
		return TimestampTZ
	case time.Duration:
		return Duration
	case []any:
		elem := Null
		for _, e := range x {
			elem = unify(elem, typeOf(e, depth+1))
		}
		return ListOf(elem)
	case *Object:
		fields := make([]arrow.Field, 0, len(x.Keys))
		for _, k := range x.Keys {
			fields = append(fields, Field(k, typeOf(x.Values[k], depth+1)))
		}
		return StructOf(fields...)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]arrow.Field, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, Field(k, typeOf(x[k], depth+1)))
		}
		return StructOf(fields...)
	default:
		return String
	}
}

func isInteger(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return true
	}
	return false
}

func isFloat(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return true
	}
	return false
}

func unify(a, b arrow.DataType) arrow.DataType {
	switch {
	case a.ID() == arrow.NULL:
		return b
	case b.ID() == arrow.NULL:
		return a
	case arrow.TypeEqual(a, b):
		return a
	case isInteger(a) && isInteger(b):
		return Int64
	case (isInteger(a) || isFloat(a)) && (isInteger(b) || isFloat(b)):
		return Float64
	case IsStruct(a) && IsStruct(b):
		af, bf := StructFields(a), StructFields(b)
		pos := make(map[string]int, len(af)+len(bf))
		out := make([]arrow.Field, 0, len(af)+len(bf))
		for _, f := range af {
			pos[f.Name] = len(out)
			out = append(out, f)
		}
		for _, f := range bf {
			if i, ok := pos[f.Name]; ok {
				out[i].Type = unify(out[i].Type, f.Type)
				continue
			}
			pos[f.Name] = len(out)
			out = append(out, f)
		}
		return StructOf(out...)
	case IsList(a) && IsList(b):
		return ListOf(unify(ListElem(a), ListElem(b)))
	default:
		return String
	}
}

// Conform converts v into the canonical Go representation for dt. Values
// that cannot be represented become nil, except for string columns which
// accept anything (nested values are rendered as JSON).
func Conform(v any, dt arrow.DataType) any {
	if v == nil {
		return nil
	}
	switch dt.ID() {
	case arrow.NULL:
		return nil
	case arrow.BOOL:
		switch x := v.(type) {
		case bool:
			return x
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return b
			}
		default:
			if i, ok := toInt64(v); ok && (i == 0 || i == 1) {
				return i == 1
			}
		}
		return nil
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		i, ok := toInt64(v)
		if !ok {
			return nil
		}
		return narrowInt(i, dt.ID())
	case arrow.FLOAT16, arrow.FLOAT32:
		if f, ok := toFloat64(v); ok {
			return float32(f)
		}
		return nil
	case arrow.FLOAT64:
		if f, ok := toFloat64(v); ok {
			return f
		}
		return nil
	case arrow.STRING, arrow.LARGE_STRING:
		return toText(v)
	case arrow.BINARY, arrow.LARGE_BINARY:
		switch x := v.(type) {
		case []byte:
			return x
		case string:
			return []byte(x)
		}
		return nil
	case arrow.DATE32, arrow.DATE64, arrow.TIMESTAMP:
		switch x := v.(type) {
		case time.Time:
			if dt.ID() != arrow.TIMESTAMP {
				y, m, d := x.Date()
				return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
			}
			return x
		case string:
			if t, ok := ParseTime(x); ok {
				return Conform(t, dt)
			}
		}
		return nil
	case arrow.TIME32, arrow.TIME64, arrow.DURATION:
		switch x := v.(type) {
		case time.Duration:
			return x
		case int64:
			return time.Duration(x) * time.Microsecond
		case string:
			if d, err := time.ParseDuration(x); err == nil {
				return d
			}
		}
		return nil
	case arrow.DECIMAL128, arrow.DECIMAL256:
		switch x := v.(type) {
		case string:
			return x
		case json.Number:
			return x.String()
		}
		if f, ok := toFloat64(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return nil
	case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST:
		xs, ok := v.([]any)
		if !ok {
			return nil
		}
		elem := ListElem(dt)
		out := make([]any, len(xs))
		for i, e := range xs {
			out[i] = Conform(e, elem)
		}
		return out
	case arrow.STRUCT:
		get, ok := structGetter(v)
		if !ok {
			return nil
		}
		fields := StructFields(dt)
		out := make(map[string]any, len(fields))
		for _, f := range fields {
			out[f.Name] = Conform(get(f.Name), f.Type)
		}
		return out
	default:
		return toText(v)
	}
}

func structGetter(v any) (func(string) any, bool) {
	switch x := v.(type) {
	case *Object:
		return func(k string) any { return x.Values[k] }, true
	case map[string]any:
		return func(k string) any { return x[k] }, true
	}
	return nil, false
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int64(x), true
		}
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
	case string:
		if i, err := strconv.ParseInt(x, 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

func narrowInt(i int64, id arrow.Type) any {
	switch id {
	case arrow.INT8:
		return int8(i)
	case arrow.INT16:
		return int16(i)
	case arrow.INT32:
		return int32(i)
	case arrow.UINT8:
		return uint8(i)
	case arrow.UINT16:
		return uint16(i)
	case arrow.UINT32:
		return uint32(i)
	case arrow.UINT64:
		return uint64(i)
	default:
		return i
	}
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case []any, map[string]any, *Object:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}

// timeLayouts are tried in order by ParseTime.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses common ISO-8601 date and timestamp spellings.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FromObjects builds a table from row objects (*Object or map[string]any).
// Columns appear in first-seen key order; missing keys are null. Each
// column's type is inferred from its values. Rows that are not objects are
// placed in a single column named "value".
func FromObjects(rows []any) (*Table, error) {
	var (
		order []string
		seen  = map[string]bool{}
	)
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			order = append(order, k)
		}
	}
	for _, r := range rows {
		switch x := r.(type) {
		case *Object:
			for _, k := range x.Keys {
				add(k)
			}
		case map[string]any:
			keys := make([]string, 0, len(x))
			for k := range x {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				add(k)
			}
		default:
			add("value")
		}
	}

	cols := make([]*Column, 0, len(order))
	for _, name := range order {
		raw := make([]any, len(rows))
		for i, r := range rows {
			switch x := r.(type) {
			case *Object:
				raw[i] = x.Values[name]
			case map[string]any:
				raw[i] = x[name]
			default:
				if name == "value" {
					raw[i] = x
				}
			}
		}
		dt := InferType(raw)
		vals := make([]any, len(raw))
		for i, v := range raw {
			vals[i] = Conform(v, dt)
		}
		cols = append(cols, &Column{Name: name, Type: dt, Values: vals})
	}
	return New(cols...)
}
