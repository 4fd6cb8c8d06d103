package parquet

import (
	"bytes"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/float16"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"etlcore/internal/table"
)

// supported reports whether values of dt survive a round trip through the
// table value representation. Anything else is read as text.
func supported(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.NULL, arrow.BOOL,
		arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64,
		arrow.STRING, arrow.LARGE_STRING, arrow.BINARY, arrow.LARGE_BINARY,
		arrow.DATE32, arrow.DATE64, arrow.TIMESTAMP, arrow.TIME32, arrow.TIME64,
		arrow.DURATION, arrow.DECIMAL128, arrow.DECIMAL256:
		return true
	case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST:
		return supported(table.ListElem(dt))
	case arrow.STRUCT:
		for _, f := range table.StructFields(dt) {
			if !supported(f.Type) {
				return false
			}
		}
		return true
	}
	return false
}

// FromArrow copies an arrow table into a table.Table.
func FromArrow(at arrow.Table) (*table.Table, error) {
	cols := make([]*table.Column, 0, at.NumCols())
	for i := 0; i < int(at.NumCols()); i++ {
		field := at.Schema().Field(i)
		col := at.Column(i)
		dt := field.Type
		asText := !supported(dt)
		if asText {
			dt = table.String
		}
		vals := make([]any, 0, at.NumRows())
		for _, chunk := range col.Data().Chunks() {
			for j := 0; j < chunk.Len(); j++ {
				switch {
				case chunk.IsNull(j):
					vals = append(vals, nil)
				case asText:
					vals = append(vals, chunk.ValueStr(j))
				default:
					vals = append(vals, valueAt(chunk, j))
				}
			}
		}
		cols = append(cols, &table.Column{Name: field.Name, Type: dt, Values: vals})
	}
	return table.New(cols...)
}

func valueAt(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i)
	case *array.Int8:
		return a.Value(i)
	case *array.Int16:
		return a.Value(i)
	case *array.Int32:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return a.Value(i)
	case *array.Uint16:
		return a.Value(i)
	case *array.Uint32:
		return a.Value(i)
	case *array.Uint64:
		return a.Value(i)
	case *array.Float16:
		return a.Value(i).Float32()
	case *array.Float32:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return bytes.Clone(a.Value(i))
	case *array.LargeBinary:
		return bytes.Clone(a.Value(i))
	case *array.Date32:
		return a.Value(i).ToTime()
	case *array.Date64:
		return a.Value(i).ToTime()
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit)
	case *array.Time32:
		unit := a.DataType().(*arrow.Time32Type).Unit
		return time.Duration(a.Value(i)) * unit.Multiplier()
	case *array.Time64:
		unit := a.DataType().(*arrow.Time64Type).Unit
		return time.Duration(a.Value(i)) * unit.Multiplier()
	case *array.Duration:
		unit := a.DataType().(*arrow.DurationType).Unit
		return time.Duration(a.Value(i)) * unit.Multiplier()
	case *array.Decimal128:
		return a.ValueStr(i)
	case *array.Decimal256:
		return a.ValueStr(i)
	case *array.Struct:
		fields := table.StructFields(a.DataType())
		out := make(map[string]any, len(fields))
		for k, f := range fields {
			out[f.Name] = valueAt(a.Field(k), i)
		}
		return out
	case array.ListLike:
		start, end := a.ValueOffsets(i)
		values := a.ListValues()
		out := make([]any, 0, end-start)
		for k := start; k < end; k++ {
			out = append(out, valueAt(values, int(k)))
		}
		return out
	default:
		return arr.ValueStr(i)
	}
}

// ToArrow builds an arrow record from t. The caller releases it.
func ToArrow(mem memory.Allocator, t *table.Table) (arrow.Record, error) {
	schema := t.Schema()
	arrs := make([]arrow.Array, 0, t.NumCols())
	release := func() {
		for _, a := range arrs {
			a.Release()
		}
	}
	for _, c := range t.Columns() {
		b := array.NewBuilder(mem, c.Type)
		for row, v := range c.Values {
			if err := appendValue(b, c.Type, v); err != nil {
				b.Release()
				release()
				return nil, fmt.Errorf("column %q row %d: %w", c.Name, row, err)
			}
		}
		arrs = append(arrs, b.NewArray())
		b.Release()
	}
	rec := array.NewRecord(schema, arrs, int64(t.NumRows()))
	release()
	return rec, nil
}

func appendValue(b array.Builder, dt arrow.DataType, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	v = table.Conform(v, dt)
	if v == nil {
		return fmt.Errorf("value not representable as %s", dt)
	}
	switch bb := b.(type) {
	case *array.BooleanBuilder:
		bb.Append(v.(bool))
	case *array.Int8Builder:
		bb.Append(v.(int8))
	case *array.Int16Builder:
		bb.Append(v.(int16))
	case *array.Int32Builder:
		bb.Append(v.(int32))
	case *array.Int64Builder:
		bb.Append(v.(int64))
	case *array.Uint8Builder:
		bb.Append(v.(uint8))
	case *array.Uint16Builder:
		bb.Append(v.(uint16))
	case *array.Uint32Builder:
		bb.Append(v.(uint32))
	case *array.Uint64Builder:
		bb.Append(v.(uint64))
	case *array.Float16Builder:
		bb.Append(float16.New(v.(float32)))
	case *array.Float32Builder:
		bb.Append(v.(float32))
	case *array.Float64Builder:
		bb.Append(v.(float64))
	case *array.StringBuilder:
		bb.Append(v.(string))
	case *array.LargeStringBuilder:
		bb.Append(v.(string))
	case *array.BinaryBuilder:
		bb.Append(v.([]byte))
	case *array.Date32Builder:
		bb.Append(arrow.Date32FromTime(v.(time.Time)))
	case *array.Date64Builder:
		bb.Append(arrow.Date64FromTime(v.(time.Time)))
	case *array.TimestampBuilder:
		ts, err := arrow.TimestampFromTime(v.(time.Time), dt.(*arrow.TimestampType).Unit)
		if err != nil {
			return err
		}
		bb.Append(ts)
	case *array.Time32Builder:
		unit := dt.(*arrow.Time32Type).Unit
		bb.Append(arrow.Time32(v.(time.Duration) / unit.Multiplier()))
	case *array.Time64Builder:
		unit := dt.(*arrow.Time64Type).Unit
		bb.Append(arrow.Time64(v.(time.Duration) / unit.Multiplier()))
	case *array.DurationBuilder:
		unit := dt.(*arrow.DurationType).Unit
		bb.Append(arrow.Duration(v.(time.Duration) / unit.Multiplier()))
	case *array.Decimal128Builder:
		return bb.AppendValueFromString(v.(string))
	case *array.Decimal256Builder:
		return bb.AppendValueFromString(v.(string))
	case *array.ListBuilder:
		bb.Append(true)
		elem := table.ListElem(dt)
		for _, e := range v.([]any) {
			if err := appendValue(bb.ValueBuilder(), elem, e); err != nil {
				return err
			}
		}
	case *array.LargeListBuilder:
		bb.Append(true)
		elem := table.ListElem(dt)
		for _, e := range v.([]any) {
			if err := appendValue(bb.ValueBuilder(), elem, e); err != nil {
				return err
			}
		}
	case *array.StructBuilder:
		bb.Append(true)
		m := v.(map[string]any)
		for k, f := range table.StructFields(dt) {
			if err := appendValue(bb.FieldBuilder(k), f.Type, m[f.Name]); err != nil {
				return err
			}
		}
	case *array.NullBuilder:
		bb.AppendNull()
	default:
		return fmt.Errorf("unsupported arrow type %s", dt)
	}
	return nil
}
