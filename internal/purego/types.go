package purego

import "unsafe"

// DuckDB C API types represented as Go types
type (
	Database      uintptr
	Connection    uintptr
	Config        uintptr
	LogicalType   uintptr
	Value         uintptr
	DataChunk     uintptr
	Vector        uintptr
	TableFunction uintptr
	BindInfo      uintptr
	InitInfo      uintptr
	FunctionInfo  uintptr

	PreparedStatement uintptr
)

// Result mirrors the C duckdb_result struct. DuckDB writes into it, so it has
// to keep the C layout; the fields are internal to the engine.
type Result struct {
	deprecatedColumnCount  uint64
	deprecatedRowCount     uint64
	deprecatedRowsChanged  uint64
	deprecatedColumns      uintptr
	deprecatedErrorMessage uintptr
	internalData           uintptr
}

// DuckDB return states
const (
	StateSuccess = 0
	StateError   = 1
)

// Type is a duckdb_type enum value
type Type uint32

// DuckDB types enum
const (
	TypeInvalid Type = iota
	TypeBoolean
	TypeTinyint
	TypeSmallint
	TypeInteger
	TypeBigint
	TypeUTinyint
	TypeUSmallint
	TypeUInteger
	TypeUBigint
	TypeFloat
	TypeDouble
	TypeTimestamp
	TypeDate
	TypeTime
	TypeInterval
	TypeHugeint
	TypeVarchar
	TypeBlob
	TypeDecimal
	TypeTimestampS
	TypeTimestampMS
	TypeTimestampNS
	TypeEnum
	TypeList
	TypeStruct
	TypeMap
	TypeUUID
	TypeUnion
	TypeBit
	TypeTimeTZ
	TypeTimestampTZ
	TypeUHugeint
	TypeArray
)

var typeNames = map[Type]string{
	TypeBoolean:     "boolean",
	TypeTinyint:     "int8",
	TypeSmallint:    "int16",
	TypeInteger:     "int32",
	TypeBigint:      "int64",
	TypeUTinyint:    "uint8",
	TypeUSmallint:   "uint16",
	TypeUInteger:    "uint32",
	TypeUBigint:     "uint64",
	TypeFloat:       "float",
	TypeDouble:      "double",
	TypeTimestamp:   "timestamp",
	TypeDate:        "date",
	TypeTime:        "time",
	TypeInterval:    "interval",
	TypeHugeint:     "int128",
	TypeUHugeint:    "uint128",
	TypeVarchar:     "varchar",
	TypeBlob:        "blob",
	TypeDecimal:     "decimal",
	TypeTimestampS:  "timestamp_s",
	TypeTimestampMS: "timestamp_ms",
	TypeTimestampNS: "timestamp_ns",
	TypeEnum:        "enum",
	TypeList:        "list",
	TypeStruct:      "struct",
	TypeMap:         "map",
	TypeUUID:        "uuid",
	TypeUnion:       "union",
	TypeBit:         "bit",
	TypeTimeTZ:      "time with time zone",
	TypeTimestampTZ: "timestamp with time zone",
	TypeArray:       "array",
}

// String returns the name DuckDB prints for the type in result headers
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "invalid"
}

// Width returns the byte width of a fixed-size value of type t in a vector,
// or 0 for types that are not stored inline.
func (t Type) Width() int {
	switch t {
	case TypeBoolean, TypeTinyint, TypeUTinyint:
		return 1
	case TypeSmallint, TypeUSmallint:
		return 2
	case TypeInteger, TypeUInteger, TypeDate, TypeFloat:
		return 4
	case TypeBigint, TypeUBigint, TypeDouble, TypeTime, TypeTimeTZ,
		TypeTimestamp, TypeTimestampS, TypeTimestampMS, TypeTimestampNS, TypeTimestampTZ:
		return 8
	default:
		return 0
	}
}

// Column represents a column in a result set
type Column struct {
	Name string
	Type Type
}

// toPtr converts a Go string to a C string pointer
func toPtr(s string) unsafe.Pointer {
	if s == "" {
		return nil
	}
	return unsafe.Pointer(&[]byte(s + "\x00")[0])
}

// cString converts a Go string to a C string pointer, keeping empty strings
// as "" rather than NULL
func cString(s string) unsafe.Pointer {
	return unsafe.Pointer(&[]byte(s + "\x00")[0])
}
