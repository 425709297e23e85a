package arrowscan

import (
	"fmt"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/connerohnesorge/dukdb-stream/internal/purego"
)

// columnWriter copies element i of arr into row of v. Nulls are handled by
// the caller.
type columnWriter func(v purego.VectorWriter, row int, arr arrow.Array, i int) error

// columnFor maps an Arrow field onto an engine column type and the writer
// that copies its values.
func columnFor(field arrow.Field) (purego.Type, columnWriter, error) {
	switch dt := field.Type.(type) {
	case *arrow.BooleanType:
		return purego.TypeBoolean, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			v.SetBool(row, arr.(*array.Boolean).Value(i))
			return nil
		}, nil
	case *arrow.Int8Type:
		return purego.TypeTinyint, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			v.SetInt(row, int64(arr.(*array.Int8).Value(i)))
			return nil
		}, nil
	case *arrow.Int16Type:
		return purego.TypeSmallint, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			v.SetInt(row, int64(arr.(*array.Int16).Value(i)))
			return nil
		}, nil
	case *arrow.Int32Type:
		return purego.TypeInteger, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			v.SetInt(row, int64(arr.(*array.Int32).Value(i)))
			return nil
		}, nil
	case *arrow.Int64Type:
		return purego.TypeBigint, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			v.SetInt(row, arr.(*array.Int64).Value(i))
			return nil
		}, nil
	case *arrow.Uint8Type:
		return purego.TypeUTinyint, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			v.SetUint(row, uint64(arr.(*array.Uint8).Value(i)))
			return nil
		}, nil
	case *arrow.Uint16Type:
		return purego.TypeUSmallint, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			v.SetUint(row, uint64(arr.(*array.Uint16).Value(i)))
			return nil
		}, nil
	case *arrow.Uint32Type:
		return purego.TypeUInteger, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			v.SetUint(row, uint64(arr.(*array.Uint32).Value(i)))
			return nil
		}, nil
	case *arrow.Uint64Type:
		return purego.TypeUBigint, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			v.SetUint(row, arr.(*array.Uint64).Value(i))
			return nil
		}, nil
	case *arrow.Float32Type:
		return purego.TypeFloat, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			v.SetFloat(row, float64(arr.(*array.Float32).Value(i)))
			return nil
		}, nil
	case *arrow.Float64Type:
		return purego.TypeDouble, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			v.SetFloat(row, arr.(*array.Float64).Value(i))
			return nil
		}, nil
	case *arrow.StringType:
		return purego.TypeVarchar, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			v.SetBytes(row, stringBytes(arr.(*array.String).Value(i)))
			return nil
		}, nil
	case *arrow.LargeStringType:
		return purego.TypeVarchar, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			v.SetBytes(row, stringBytes(arr.(*array.LargeString).Value(i)))
			return nil
		}, nil
	case *arrow.BinaryType:
		return purego.TypeBlob, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			v.SetBytes(row, arr.(*array.Binary).Value(i))
			return nil
		}, nil
	case *arrow.LargeBinaryType:
		return purego.TypeBlob, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			v.SetBytes(row, arr.(*array.LargeBinary).Value(i))
			return nil
		}, nil
	case *arrow.Date32Type:
		return purego.TypeDate, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			v.SetInt(row, int64(arr.(*array.Date32).Value(i)))
			return nil
		}, nil
	case *arrow.Date64Type:
		return purego.TypeDate, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			v.SetInt(row, date64ToDays(int64(arr.(*array.Date64).Value(i))))
			return nil
		}, nil
	case *arrow.TimestampType:
		t := purego.TypeTimestamp
		if dt.TimeZone != "" {
			t = purego.TypeTimestampTZ
		}
		unit := dt.Unit
		return t, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			us, err := toMicros(int64(arr.(*array.Timestamp).Value(i)), unit)
			if err != nil {
				return err
			}
			v.SetInt(row, us)
			return nil
		}, nil
	case *arrow.Time32Type:
		unit := dt.Unit
		return purego.TypeTime, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			us, err := toMicros(int64(arr.(*array.Time32).Value(i)), unit)
			if err != nil {
				return err
			}
			v.SetInt(row, us)
			return nil
		}, nil
	case *arrow.Time64Type:
		unit := dt.Unit
		return purego.TypeTime, func(v purego.VectorWriter, row int, arr arrow.Array, i int) error {
			us, err := toMicros(int64(arr.(*array.Time64).Value(i)), unit)
			if err != nil {
				return err
			}
			v.SetInt(row, us)
			return nil
		}, nil
	default:
		return purego.TypeInvalid, nil, fmt.Errorf("column %q: unsupported arrow type %s", field.Name, field.Type)
	}
}

// stringBytes views s as bytes without copying; the engine copies on write
func stringBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
