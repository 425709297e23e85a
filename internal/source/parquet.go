package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
)

// parquetSchema maps the file's top-level columns onto Arrow fields. Only
// flat schemas are supported.
func parquetSchema(path string) (*arrow.Schema, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	fields := pf.Schema().Fields()
	out := make([]arrow.Field, 0, len(fields))
	for _, field := range fields {
		t, err := parquetType(field)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", field.Name(), err)
		}
		out = append(out, arrow.Field{Name: field.Name(), Type: t, Nullable: field.Optional()})
	}
	return arrow.NewSchema(out, nil), nil
}

func parquetType(field parquet.Field) (arrow.DataType, error) {
	if !field.Leaf() || field.Repeated() {
		return nil, errors.New("nested and repeated columns are not supported")
	}

	lt := field.Type().LogicalType()
	if lt != nil && lt.Decimal != nil {
		// the unscaled integers would read back as wrong numbers
		return nil, fmt.Errorf("decimal(%d,%d) columns are not supported", lt.Decimal.Precision, lt.Decimal.Scale)
	}
	switch field.Type().Kind() {
	case parquet.Boolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case parquet.Int32:
		switch {
		case lt != nil && lt.Date != nil:
			return arrow.FixedWidthTypes.Date32, nil
		case lt != nil && lt.Time != nil:
			return arrow.FixedWidthTypes.Time32ms, nil
		case lt != nil && lt.Integer != nil:
			return intType(lt.Integer), nil
		}
		return arrow.PrimitiveTypes.Int32, nil
	case parquet.Int64:
		switch {
		case lt != nil && lt.Timestamp != nil:
			ts := &arrow.TimestampType{Unit: timeUnit(lt.Timestamp.Unit)}
			if lt.Timestamp.IsAdjustedToUTC {
				ts.TimeZone = "UTC"
			}
			return ts, nil
		case lt != nil && lt.Time != nil:
			return &arrow.Time64Type{Unit: timeUnit(lt.Time.Unit)}, nil
		case lt != nil && lt.Integer != nil && !lt.Integer.IsSigned:
			return arrow.PrimitiveTypes.Uint64, nil
		}
		return arrow.PrimitiveTypes.Int64, nil
	case parquet.Float:
		return arrow.PrimitiveTypes.Float32, nil
	case parquet.Double:
		return arrow.PrimitiveTypes.Float64, nil
	case parquet.ByteArray:
		if lt != nil && (lt.UTF8 != nil || lt.Enum != nil || lt.Json != nil) {
			return arrow.BinaryTypes.String, nil
		}
		return arrow.BinaryTypes.Binary, nil
	case parquet.FixedLenByteArray:
		if isUUID(field) {
			return arrow.BinaryTypes.String, nil
		}
		return arrow.BinaryTypes.Binary, nil
	}
	return nil, fmt.Errorf("unsupported parquet type %s", field.Type())
}

func isUUID(field parquet.Field) bool {
	lt := field.Type().LogicalType()
	return lt != nil && lt.UUID != nil
}

func intType(it *format.IntType) arrow.DataType {
	switch {
	case it.IsSigned && it.BitWidth == 8:
		return arrow.PrimitiveTypes.Int8
	case it.IsSigned && it.BitWidth == 16:
		return arrow.PrimitiveTypes.Int16
	case it.IsSigned:
		return arrow.PrimitiveTypes.Int32
	case it.BitWidth == 8:
		return arrow.PrimitiveTypes.Uint8
	case it.BitWidth == 16:
		return arrow.PrimitiveTypes.Uint16
	default:
		return arrow.PrimitiveTypes.Uint32
	}
}

func timeUnit(u format.TimeUnit) arrow.TimeUnit {
	switch {
	case u.Millis != nil:
		return arrow.Millisecond
	case u.Nanos != nil:
		return arrow.Nanosecond
	default:
		return arrow.Microsecond
	}
}

// appendValue adds one non-null parquet value to the builder for its column
func appendValue(b array.Builder, v parquet.Value) {
	switch b := b.(type) {
	case *array.BooleanBuilder:
		b.Append(v.Boolean())
	case *array.Int8Builder:
		b.Append(int8(v.Int32()))
	case *array.Int16Builder:
		b.Append(int16(v.Int32()))
	case *array.Int32Builder:
		b.Append(v.Int32())
	case *array.Int64Builder:
		b.Append(v.Int64())
	case *array.Uint8Builder:
		b.Append(uint8(v.Int32()))
	case *array.Uint16Builder:
		b.Append(uint16(v.Int32()))
	case *array.Uint32Builder:
		b.Append(uint32(v.Int32()))
	case *array.Uint64Builder:
		b.Append(uint64(v.Int64()))
	case *array.Float32Builder:
		b.Append(v.Float())
	case *array.Float64Builder:
		b.Append(v.Double())
	case *array.StringBuilder:
		b.Append(string(v.ByteArray()))
	case *array.BinaryBuilder:
		b.Append(v.ByteArray())
	case *array.Date32Builder:
		b.Append(arrow.Date32(v.Int32()))
	case *array.Time32Builder:
		b.Append(arrow.Time32(v.Int32()))
	case *array.Time64Builder:
		b.Append(arrow.Time64(v.Int64()))
	case *array.TimestampBuilder:
		b.Append(arrow.Timestamp(v.Int64()))
	default:
		b.AppendNull()
	}
}

// parquetReader reads rows with parquet-go and assembles them into records
type parquetReader struct {
	refs    atomic.Int64
	schema  *arrow.Schema
	rows    *parquet.Reader
	builder *array.RecordBuilder
	buf     []parquet.Row
	uuids   []bool // columns holding 16 byte UUIDs, read back as text
	rec     arrow.Record
	err     error
	done    bool
}

func openParquet(f *File, file *os.File) (array.RecordReader, error) {
	r := &parquetReader{
		schema:  f.schema,
		rows:    parquet.NewReader(file),
		builder: array.NewRecordBuilder(f.mem, f.schema),
		buf:     make([]parquet.Row, f.spec.BatchSize),
	}
	fields := r.rows.Schema().Fields()
	if n := len(fields); n != f.schema.NumFields() {
		r.builder.Release()
		_ = r.rows.Close()
		return nil, fmt.Errorf("parquet file now has %d columns, expected %d", n, f.schema.NumFields())
	}
	r.uuids = make([]bool, len(fields))
	for i, field := range fields {
		r.uuids[i] = isUUID(field)
	}
	r.refs.Store(1)
	return r, nil
}

func (r *parquetReader) Retain() {
	r.refs.Add(1)
}

func (r *parquetReader) Release() {
	if r.refs.Add(-1) != 0 {
		return
	}
	if r.rec != nil {
		r.rec.Release()
		r.rec = nil
	}
	r.builder.Release()
	_ = r.rows.Close()
}

func (r *parquetReader) Schema() *arrow.Schema {
	return r.schema
}

func (r *parquetReader) Record() arrow.Record {
	return r.rec
}

func (r *parquetReader) Err() error {
	return r.err
}

func (r *parquetReader) Next() bool {
	if r.rec != nil {
		r.rec.Release()
		r.rec = nil
	}
	if r.done {
		return false
	}

	n, err := r.rows.ReadRows(r.buf)
	for _, row := range r.buf[:n] {
		for _, v := range row {
			b := r.builder.Field(v.Column())
			if v.IsNull() {
				b.AppendNull()
				continue
			}
			if r.uuids[v.Column()] {
				id, err := uuid.FromBytes(v.ByteArray())
				if err != nil {
					r.err = fmt.Errorf("column %s: %w", r.schema.Field(v.Column()).Name, err)
					r.done = true
					return false
				}
				b.(*array.StringBuilder).Append(id.String())
				continue
			}
			appendValue(b, v)
		}
	}
	switch {
	case errors.Is(err, io.EOF):
		r.done = true
	case err != nil:
		r.err = fmt.Errorf("read parquet rows: %w", err)
		r.done = true
		return false
	}
	if n == 0 {
		return false
	}

	r.rec = r.builder.NewRecord()
	return true
}
