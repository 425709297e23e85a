package resultset

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
)

// DefaultBatchSize is the record length RecordReader uses when asked for 0
const DefaultBatchSize = 2048

// ArrowType maps an engine type name onto the Arrow type its values are
// converted to. Types without a native mapping (int128, interval, decimal
// text, nested types) are carried as strings.
func ArrowType(typ string) arrow.DataType {
	switch typ {
	case "boolean":
		return arrow.FixedWidthTypes.Boolean
	case "int8":
		return arrow.PrimitiveTypes.Int8
	case "int16":
		return arrow.PrimitiveTypes.Int16
	case "int32":
		return arrow.PrimitiveTypes.Int32
	case "int64":
		return arrow.PrimitiveTypes.Int64
	case "uint8":
		return arrow.PrimitiveTypes.Uint8
	case "uint16":
		return arrow.PrimitiveTypes.Uint16
	case "uint32":
		return arrow.PrimitiveTypes.Uint32
	case "uint64":
		return arrow.PrimitiveTypes.Uint64
	case "float":
		return arrow.PrimitiveTypes.Float32
	case "double", "decimal":
		return arrow.PrimitiveTypes.Float64
	case "date":
		return arrow.FixedWidthTypes.Date32
	case "time":
		return arrow.FixedWidthTypes.Time64us
	case "timestamp", "timestamp_s", "timestamp_ms", "timestamp_ns":
		return &arrow.TimestampType{Unit: arrow.Microsecond}
	case "timestamp with time zone":
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	case "blob":
		return arrow.BinaryTypes.Binary
	}
	return arrow.BinaryTypes.String
}

// Schema returns the Arrow schema of t. Every field is nullable.
func (t *Table) Schema() *arrow.Schema {
	fields := make([]arrow.Field, len(t.Columns))
	for i, c := range t.Columns {
		fields[i] = arrow.Field{Name: c.Name, Type: ArrowType(c.Type), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// RecordReader converts t into Arrow records of at most batch rows. The
// records are built up front, a conversion error is returned here and not
// from the reader.
func (t *Table) RecordReader(mem memory.Allocator, batch int) (array.RecordReader, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	schema := t.Schema()
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	var recs []arrow.Record
	defer func() {
		for _, r := range recs {
			r.Release()
		}
	}()

	for start := 0; start < len(t.Rows); start += batch {
		end := min(start+batch, len(t.Rows))
		for _, row := range t.Rows[start:end] {
			for col, v := range row {
				if err := appendCell(b.Field(col), v); err != nil {
					return nil, fmt.Errorf("column %q: %w", t.Columns[col].Name, err)
				}
			}
		}
		recs = append(recs, b.NewRecord())
	}

	// the reader retains what it keeps, ours are dropped by the defer
	return array.NewRecordReader(schema, recs)
}

// appendCell adds one value of the Go type the engine binding produces for
// the builder's column type
func appendCell(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	ok := true
	switch b := b.(type) {
	case *array.BooleanBuilder:
		var x bool
		if x, ok = v.(bool); ok {
			b.Append(x)
		}
	case *array.Int8Builder:
		var x int8
		if x, ok = v.(int8); ok {
			b.Append(x)
		}
	case *array.Int16Builder:
		var x int16
		if x, ok = v.(int16); ok {
			b.Append(x)
		}
	case *array.Int32Builder:
		var x int32
		if x, ok = v.(int32); ok {
			b.Append(x)
		}
	case *array.Int64Builder:
		var x int64
		if x, ok = v.(int64); ok {
			b.Append(x)
		}
	case *array.Uint8Builder:
		var x uint8
		if x, ok = v.(uint8); ok {
			b.Append(x)
		}
	case *array.Uint16Builder:
		var x uint16
		if x, ok = v.(uint16); ok {
			b.Append(x)
		}
	case *array.Uint32Builder:
		var x uint32
		if x, ok = v.(uint32); ok {
			b.Append(x)
		}
	case *array.Uint64Builder:
		var x uint64
		if x, ok = v.(uint64); ok {
			b.Append(x)
		}
	case *array.Float32Builder:
		var x float32
		if x, ok = v.(float32); ok {
			b.Append(x)
		}
	case *array.Float64Builder:
		var x float64
		if x, ok = v.(float64); ok {
			b.Append(x)
		}
	case *array.Date32Builder:
		if tm, isTime := v.(time.Time); isTime {
			b.Append(arrow.Date32FromTime(tm))
		} else {
			ok = false
		}
	case *array.Time64Builder:
		if tm, isTime := v.(time.Time); isTime {
			micros := int64(tm.Hour())*3_600_000_000 + int64(tm.Minute())*60_000_000 +
				int64(tm.Second())*1_000_000 + int64(tm.Nanosecond()/1000)
			b.Append(arrow.Time64(micros))
		} else {
			ok = false
		}
	case *array.TimestampBuilder:
		if tm, isTime := v.(time.Time); isTime {
			b.Append(arrow.Timestamp(tm.UnixMicro()))
		} else {
			ok = false
		}
	case *array.BinaryBuilder:
		switch x := v.(type) {
		case []byte:
			b.Append(x)
		case string:
			b.Append([]byte(x))
		default:
			ok = false
		}
	case *array.StringBuilder:
		switch x := v.(type) {
		case string:
			b.Append(x)
		case uuid.UUID:
			b.Append(x.String())
		default:
			b.Append(fmt.Sprint(x))
		}
	default:
		return fmt.Errorf("no conversion to %s", b.Type())
	}
	if !ok {
		return fmt.Errorf("cannot convert %T to %s", v, b.Type())
	}
	return nil
}
