package table

import "github.com/apache/arrow-go/v18/arrow"

// Commonly used column types.
var (
	Int64       arrow.DataType = arrow.PrimitiveTypes.Int64
	Float64     arrow.DataType = arrow.PrimitiveTypes.Float64
	Bool        arrow.DataType = arrow.FixedWidthTypes.Boolean
	String      arrow.DataType = arrow.BinaryTypes.String
	Binary      arrow.DataType = arrow.BinaryTypes.Binary
	Date        arrow.DataType = arrow.FixedWidthTypes.Date32
	Time        arrow.DataType = arrow.FixedWidthTypes.Time64us
	Timestamp   arrow.DataType = &arrow.TimestampType{Unit: arrow.Microsecond}
	TimestampTZ arrow.DataType = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	Duration    arrow.DataType = arrow.FixedWidthTypes.Duration_us
	Null        arrow.DataType = arrow.Null
)

// ListOf returns List<elem>.
func ListOf(elem arrow.DataType) arrow.DataType { return arrow.ListOf(elem) }

// StructOf returns a struct type with nullable fields in the given order.
func StructOf(fields ...arrow.Field) arrow.DataType {
	for i := range fields {
		fields[i].Nullable = true
	}
	return arrow.StructOf(fields...)
}

// Field is shorthand for a nullable struct field.
func Field(name string, dt arrow.DataType) arrow.Field {
	return arrow.Field{Name: name, Type: dt, Nullable: true}
}

// IsStruct reports whether dt is a struct type.
func IsStruct(dt arrow.DataType) bool {
	return dt != nil && dt.ID() == arrow.STRUCT
}

// IsList reports whether dt is any list flavour.
func IsList(dt arrow.DataType) bool {
	if dt == nil {
		return false
	}
	switch dt.ID() {
	case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST, arrow.LIST_VIEW, arrow.LARGE_LIST_VIEW:
		return true
	}
	return false
}

// ListElem returns the element type of a list type, or nil.
func ListElem(dt arrow.DataType) arrow.DataType {
	if lt, ok := dt.(arrow.ListLikeType); ok {
		return lt.Elem()
	}
	return nil
}

// IsListOfStruct reports whether dt is List<Struct{...}>.
func IsListOfStruct(dt arrow.DataType) bool {
	return IsList(dt) && IsStruct(ListElem(dt))
}

// IsNested reports whether dt is a list, struct or map type.
func IsNested(dt arrow.DataType) bool {
	if dt == nil {
		return false
	}
	return IsList(dt) || IsStruct(dt) || dt.ID() == arrow.MAP
}

// StructFields returns the fields of a struct type, or nil.
func StructFields(dt arrow.DataType) []arrow.Field {
	if st, ok := dt.(*arrow.StructType); ok {
		return st.Fields()
	}
	return nil
}
