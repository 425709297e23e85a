package purego

import (
	"fmt"
	"sync"
	"unsafe"
)

// DuckDB represents a loaded DuckDB library with its C API bound
type DuckDB struct {
	lib *Library

	// Core database functions
	duckdbOpenExt       func(path unsafe.Pointer, db *Database, config Config, errOut *unsafe.Pointer) uint32
	duckdbClose         func(db *Database)
	duckdbConnect       func(db Database, conn *Connection) uint32
	duckdbDisconnect    func(conn *Connection)
	duckdbCreateConfig  func(config *Config) uint32
	duckdbSetConfig     func(config Config, name unsafe.Pointer, option unsafe.Pointer) uint32
	duckdbDestroyConfig func(config *Config)
	duckdbFree          func(ptr unsafe.Pointer)

	// Query execution functions
	duckdbQuery         func(conn Connection, query unsafe.Pointer, result *Result) uint32
	duckdbDestroyResult func(result *Result)
	duckdbResultError   func(result *Result) unsafe.Pointer
	duckdbRowCount      func(result *Result) uint64
	duckdbRowsChanged   func(result *Result) uint64
	duckdbColumnCount   func(result *Result) uint64
	duckdbColumnName    func(result *Result, col uint64) unsafe.Pointer
	duckdbColumnType    func(result *Result, col uint64) uint32

	// Prepared statement functions
	duckdbPrepare         func(conn Connection, query unsafe.Pointer, stmt *PreparedStatement) uint32
	duckdbPrepareError    func(stmt PreparedStatement) unsafe.Pointer
	duckdbNParams         func(stmt PreparedStatement) uint64
	duckdbDestroyPrepare  func(stmt *PreparedStatement)
	duckdbExecutePrepared func(stmt PreparedStatement, result *Result) uint32
	duckdbClearBindings   func(stmt PreparedStatement) uint32
	duckdbBindNull        func(stmt PreparedStatement, idx uint64) uint32
	duckdbBindBoolean     func(stmt PreparedStatement, idx uint64, val bool) uint32
	duckdbBindInt8        func(stmt PreparedStatement, idx uint64, val int8) uint32
	duckdbBindInt16       func(stmt PreparedStatement, idx uint64, val int16) uint32
	duckdbBindInt32       func(stmt PreparedStatement, idx uint64, val int32) uint32
	duckdbBindInt64       func(stmt PreparedStatement, idx uint64, val int64) uint32
	duckdbBindUint8       func(stmt PreparedStatement, idx uint64, val uint8) uint32
	duckdbBindUint16      func(stmt PreparedStatement, idx uint64, val uint16) uint32
	duckdbBindUint32      func(stmt PreparedStatement, idx uint64, val uint32) uint32
	duckdbBindUint64      func(stmt PreparedStatement, idx uint64, val uint64) uint32
	duckdbBindFloat       func(stmt PreparedStatement, idx uint64, val float32) uint32
	duckdbBindDouble      func(stmt PreparedStatement, idx uint64, val float64) uint32
	duckdbBindVarchar     func(stmt PreparedStatement, idx uint64, val unsafe.Pointer) uint32
	duckdbBindBlob        func(stmt PreparedStatement, idx uint64, data unsafe.Pointer, length uint64) uint32
	duckdbBindTimestamp   func(stmt PreparedStatement, idx uint64, micros int64) uint32

	// Data access functions
	duckdbValueIsNull    func(result *Result, col uint64, row uint64) bool
	duckdbValueBoolean   func(result *Result, col uint64, row uint64) bool
	duckdbValueInt8      func(result *Result, col uint64, row uint64) int8
	duckdbValueInt16     func(result *Result, col uint64, row uint64) int16
	duckdbValueInt32     func(result *Result, col uint64, row uint64) int32
	duckdbValueInt64     func(result *Result, col uint64, row uint64) int64
	duckdbValueUint8     func(result *Result, col uint64, row uint64) uint8
	duckdbValueUint16    func(result *Result, col uint64, row uint64) uint16
	duckdbValueUint32    func(result *Result, col uint64, row uint64) uint32
	duckdbValueUint64    func(result *Result, col uint64, row uint64) uint64
	duckdbValueFloat     func(result *Result, col uint64, row uint64) float32
	duckdbValueDouble    func(result *Result, col uint64, row uint64) float64
	duckdbValueVarchar   func(result *Result, col uint64, row uint64) unsafe.Pointer
	duckdbValueDate      func(result *Result, col uint64, row uint64) int32
	duckdbValueTime      func(result *Result, col uint64, row uint64) int64
	duckdbValueTimestamp func(result *Result, col uint64, row uint64) int64

	// Type and value functions
	duckdbCreateLogicalType  func(typeID uint32) LogicalType
	duckdbDestroyLogicalType func(logicalType *LogicalType)
	duckdbGetUint64          func(value Value) uint64
	duckdbDestroyValue       func(value *Value)

	// Table function functions
	duckdbCreateTableFunction             func() TableFunction
	duckdbDestroyTableFunction            func(tf *TableFunction)
	duckdbTableFunctionSetName            func(tf TableFunction, name unsafe.Pointer)
	duckdbTableFunctionAddParameter       func(tf TableFunction, logicalType LogicalType)
	duckdbTableFunctionSetExtraInfo       func(tf TableFunction, extra uintptr, destroy uintptr)
	duckdbTableFunctionSetBind            func(tf TableFunction, bind uintptr)
	duckdbTableFunctionSetInit            func(tf TableFunction, init uintptr)
	duckdbTableFunctionSetFunction        func(tf TableFunction, function uintptr)
	duckdbTableFunctionSupportsProjection func(tf TableFunction, pushdown bool)
	duckdbRegisterTableFunction           func(conn Connection, tf TableFunction) uint32
	duckdbBindGetExtraInfo                func(info BindInfo) uintptr
	duckdbBindAddResultColumn             func(info BindInfo, name unsafe.Pointer, logicalType LogicalType)
	duckdbBindGetParameterCount           func(info BindInfo) uint64
	duckdbBindGetParameter                func(info BindInfo, index uint64) Value
	duckdbBindSetBindData                 func(info BindInfo, data uintptr, destroy uintptr)
	duckdbBindSetError                    func(info BindInfo, msg unsafe.Pointer)
	duckdbInitGetBindData                 func(info InitInfo) uintptr
	duckdbInitSetInitData                 func(info InitInfo, data uintptr, destroy uintptr)
	duckdbInitSetError                    func(info InitInfo, msg unsafe.Pointer)
	duckdbFunctionGetBindData             func(info FunctionInfo) uintptr
	duckdbFunctionGetInitData             func(info FunctionInfo) uintptr
	duckdbFunctionSetError                func(info FunctionInfo, msg unsafe.Pointer)

	// Data chunk and vector functions
	duckdbVectorSize                   func() uint64
	duckdbDataChunkGetColumnCount      func(chunk DataChunk) uint64
	duckdbDataChunkGetVector           func(chunk DataChunk, col uint64) Vector
	duckdbDataChunkSetSize             func(chunk DataChunk, size uint64)
	duckdbVectorGetData                func(vector Vector) unsafe.Pointer
	duckdbVectorEnsureValidityWritable func(vector Vector)
	duckdbVectorGetValidity            func(vector Vector) unsafe.Pointer
	duckdbValiditySetRowInvalid        func(validity unsafe.Pointer, row uint64)
	duckdbVectorAssignStringElementLen func(vector Vector, index uint64, str unsafe.Pointer, length uint64)
}

// New loads the library from libDir (see LoadLibrary) and binds the C API
func New(libDir string) (*DuckDB, error) {
	lib, err := LoadLibrary(libDir)
	if err != nil {
		return nil, err
	}

	db := &DuckDB{lib: lib}

	if err := db.registerFunctions(); err != nil {
		_ = lib.Close() // Library closing errors not critical in error path
		return nil, err
	}

	return db, nil
}

// symbol pairs a function pointer field with its exported name
type symbol struct {
	fn   interface{}
	name string
}

func (d *DuckDB) symbols() []symbol {
	return []symbol{
		// Core database functions
		{&d.duckdbOpenExt, "duckdb_open_ext"},
		{&d.duckdbClose, "duckdb_close"},
		{&d.duckdbConnect, "duckdb_connect"},
		{&d.duckdbDisconnect, "duckdb_disconnect"},
		{&d.duckdbCreateConfig, "duckdb_create_config"},
		{&d.duckdbSetConfig, "duckdb_set_config"},
		{&d.duckdbDestroyConfig, "duckdb_destroy_config"},
		{&d.duckdbFree, "duckdb_free"},

		// Query execution functions
		{&d.duckdbQuery, "duckdb_query"},
		{&d.duckdbDestroyResult, "duckdb_destroy_result"},
		{&d.duckdbResultError, "duckdb_result_error"},
		{&d.duckdbRowCount, "duckdb_row_count"},
		{&d.duckdbRowsChanged, "duckdb_rows_changed"},
		{&d.duckdbColumnCount, "duckdb_column_count"},
		{&d.duckdbColumnName, "duckdb_column_name"},
		{&d.duckdbColumnType, "duckdb_column_type"},

		// Prepared statement functions
		{&d.duckdbPrepare, "duckdb_prepare"},
		{&d.duckdbPrepareError, "duckdb_prepare_error"},
		{&d.duckdbNParams, "duckdb_nparams"},
		{&d.duckdbDestroyPrepare, "duckdb_destroy_prepare"},
		{&d.duckdbExecutePrepared, "duckdb_execute_prepared"},
		{&d.duckdbClearBindings, "duckdb_clear_bindings"},
		{&d.duckdbBindNull, "duckdb_bind_null"},
		{&d.duckdbBindBoolean, "duckdb_bind_boolean"},
		{&d.duckdbBindInt8, "duckdb_bind_int8"},
		{&d.duckdbBindInt16, "duckdb_bind_int16"},
		{&d.duckdbBindInt32, "duckdb_bind_int32"},
		{&d.duckdbBindInt64, "duckdb_bind_int64"},
		{&d.duckdbBindUint8, "duckdb_bind_uint8"},
		{&d.duckdbBindUint16, "duckdb_bind_uint16"},
		{&d.duckdbBindUint32, "duckdb_bind_uint32"},
		{&d.duckdbBindUint64, "duckdb_bind_uint64"},
		{&d.duckdbBindFloat, "duckdb_bind_float"},
		{&d.duckdbBindDouble, "duckdb_bind_double"},
		{&d.duckdbBindVarchar, "duckdb_bind_varchar"},
		{&d.duckdbBindBlob, "duckdb_bind_blob"},
		{&d.duckdbBindTimestamp, "duckdb_bind_timestamp"},

		// Data access functions
		{&d.duckdbValueIsNull, "duckdb_value_is_null"},
		{&d.duckdbValueBoolean, "duckdb_value_boolean"},
		{&d.duckdbValueInt8, "duckdb_value_int8"},
		{&d.duckdbValueInt16, "duckdb_value_int16"},
		{&d.duckdbValueInt32, "duckdb_value_int32"},
		{&d.duckdbValueInt64, "duckdb_value_int64"},
		{&d.duckdbValueUint8, "duckdb_value_uint8"},
		{&d.duckdbValueUint16, "duckdb_value_uint16"},
		{&d.duckdbValueUint32, "duckdb_value_uint32"},
		{&d.duckdbValueUint64, "duckdb_value_uint64"},
		{&d.duckdbValueFloat, "duckdb_value_float"},
		{&d.duckdbValueDouble, "duckdb_value_double"},
		{&d.duckdbValueVarchar, "duckdb_value_varchar"},
		{&d.duckdbValueDate, "duckdb_value_date"},
		{&d.duckdbValueTime, "duckdb_value_time"},
		{&d.duckdbValueTimestamp, "duckdb_value_timestamp"},

		// Type and value functions
		{&d.duckdbCreateLogicalType, "duckdb_create_logical_type"},
		{&d.duckdbDestroyLogicalType, "duckdb_destroy_logical_type"},
		{&d.duckdbGetUint64, "duckdb_get_uint64"},
		{&d.duckdbDestroyValue, "duckdb_destroy_value"},

		// Table function functions
		{&d.duckdbCreateTableFunction, "duckdb_create_table_function"},
		{&d.duckdbDestroyTableFunction, "duckdb_destroy_table_function"},
		{&d.duckdbTableFunctionSetName, "duckdb_table_function_set_name"},
		{&d.duckdbTableFunctionAddParameter, "duckdb_table_function_add_parameter"},
		{&d.duckdbTableFunctionSetExtraInfo, "duckdb_table_function_set_extra_info"},
		{&d.duckdbTableFunctionSetBind, "duckdb_table_function_set_bind"},
		{&d.duckdbTableFunctionSetInit, "duckdb_table_function_set_init"},
		{&d.duckdbTableFunctionSetFunction, "duckdb_table_function_set_function"},
		{&d.duckdbTableFunctionSupportsProjection, "duckdb_table_function_supports_projection_pushdown"},
		{&d.duckdbRegisterTableFunction, "duckdb_register_table_function"},
		{&d.duckdbBindGetExtraInfo, "duckdb_bind_get_extra_info"},
		{&d.duckdbBindAddResultColumn, "duckdb_bind_add_result_column"},
		{&d.duckdbBindGetParameterCount, "duckdb_bind_get_parameter_count"},
		{&d.duckdbBindGetParameter, "duckdb_bind_get_parameter"},
		{&d.duckdbBindSetBindData, "duckdb_bind_set_bind_data"},
		{&d.duckdbBindSetError, "duckdb_bind_set_error"},
		{&d.duckdbInitGetBindData, "duckdb_init_get_bind_data"},
		{&d.duckdbInitSetInitData, "duckdb_init_set_init_data"},
		{&d.duckdbInitSetError, "duckdb_init_set_error"},
		{&d.duckdbFunctionGetBindData, "duckdb_function_get_bind_data"},
		{&d.duckdbFunctionGetInitData, "duckdb_function_get_init_data"},
		{&d.duckdbFunctionSetError, "duckdb_function_set_error"},

		// Data chunk and vector functions
		{&d.duckdbVectorSize, "duckdb_vector_size"},
		{&d.duckdbDataChunkGetColumnCount, "duckdb_data_chunk_get_column_count"},
		{&d.duckdbDataChunkGetVector, "duckdb_data_chunk_get_vector"},
		{&d.duckdbDataChunkSetSize, "duckdb_data_chunk_set_size"},
		{&d.duckdbVectorGetData, "duckdb_vector_get_data"},
		{&d.duckdbVectorEnsureValidityWritable, "duckdb_vector_ensure_validity_writable"},
		{&d.duckdbVectorGetValidity, "duckdb_vector_get_validity"},
		{&d.duckdbValiditySetRowInvalid, "duckdb_validity_set_row_invalid"},
		{&d.duckdbVectorAssignStringElementLen, "duckdb_vector_assign_string_element_len"},
	}
}

// registerFunctions binds every DuckDB C API function the bridge uses
func (d *DuckDB) registerFunctions() error {
	for _, s := range d.symbols() {
		if err := d.lib.RegisterFunc(s.fn, s.name); err != nil {
			return fmt.Errorf("failed to bind duckdb C API: %w", err)
		}
	}
	return nil
}

// Close closes the DuckDB library
func (d *DuckDB) Close() error {
	if d.lib != nil {
		return d.lib.Close()
	}
	return nil
}

var (
	sharedOnce sync.Once
	shared     *DuckDB
	sharedErr  error
)

// Shared returns the process-wide binding, loading the library on first use.
// libDir only matters on that first call; the library is never unloaded.
func Shared(libDir string) (*DuckDB, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = New(libDir)
	})
	return shared, sharedErr
}
