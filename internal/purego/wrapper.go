package purego

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/google/uuid"

	"github.com/connerohnesorge/dukdb-stream/internal/resultset"
)

// Error is an error reported by the engine itself, as opposed to a failure
// of the binding layer
type Error struct {
	Op      string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

// Open opens a database. An empty path opens a non-persistent in-memory
// database. options are passed to the engine config (e.g. "threads": "1").
func (d *DuckDB) Open(path string, options map[string]string) (Database, error) {
	var config Config
	if d.duckdbCreateConfig(&config) != StateSuccess {
		return 0, &Error{Op: "create config", Message: "allocation failed"}
	}
	defer d.duckdbDestroyConfig(&config)

	for name, value := range options {
		if d.duckdbSetConfig(config, cString(name), cString(value)) != StateSuccess {
			return 0, &Error{Op: "set config", Message: fmt.Sprintf("invalid option %s=%s", name, value)}
		}
	}

	var (
		db     Database
		errMsg unsafe.Pointer
	)
	if d.duckdbOpenExt(toPtr(path), &db, config, &errMsg) != StateSuccess {
		msg := ptrToString(errMsg)
		if errMsg != nil {
			d.duckdbFree(errMsg)
		}
		return 0, &Error{Op: "open", Message: msg}
	}

	return db, nil
}

// CloseDatabase closes a database
func (d *DuckDB) CloseDatabase(db Database) {
	if db != 0 {
		d.duckdbClose(&db)
	}
}

// Connect creates a new connection to the database
func (d *DuckDB) Connect(db Database) (Connection, error) {
	var conn Connection

	if result := d.duckdbConnect(db, &conn); result != StateSuccess {
		return 0, &Error{Op: "connect", Message: "failed to connect to database"}
	}

	return conn, nil
}

// Disconnect closes a connection
func (d *DuckDB) Disconnect(conn Connection) {
	if conn != 0 {
		d.duckdbDisconnect(&conn)
	}
}

// Query executes a SQL statement and returns the open result. The caller
// must Close it.
func (d *DuckDB) Query(conn Connection, query string) (*QueryResult, error) {
	result := new(Result)

	// table function callbacks run on this thread while the query executes
	runtime.LockOSThread()
	status := d.duckdbQuery(conn, cString(query), result)
	runtime.UnlockOSThread()

	if status != StateSuccess {
		errMsg := d.getResultError(result)
		d.duckdbDestroyResult(result)
		return nil, &Error{Op: "query", Message: errMsg}
	}

	return d.createQueryResult(result), nil
}

// QueryTable executes a SQL statement and materializes its result
func (d *DuckDB) QueryTable(conn Connection, query string) (*resultset.Table, error) {
	qr, err := d.Query(conn, query)
	if err != nil {
		return nil, err
	}
	defer qr.Close()

	return qr.Table()
}

// QueryResult represents the result of a query
type QueryResult struct {
	duckdb      *DuckDB
	result      *Result
	columns     []Column
	rowCount    uint64
	rowsChanged uint64
}

// createQueryResult creates a QueryResult from a Result
func (d *DuckDB) createQueryResult(result *Result) *QueryResult {
	qr := &QueryResult{
		duckdb:      d,
		result:      result,
		rowCount:    d.duckdbRowCount(result),
		rowsChanged: d.duckdbRowsChanged(result),
	}

	colCount := d.duckdbColumnCount(result)
	qr.columns = make([]Column, colCount)

	for i := uint64(0); i < colCount; i++ {
		qr.columns[i] = Column{
			Name: ptrToString(d.duckdbColumnName(result, i)),
			Type: Type(d.duckdbColumnType(result, i)),
		}
	}

	return qr
}

// Close destroys the query result
func (qr *QueryResult) Close() {
	if qr.result != nil {
		qr.duckdb.duckdbDestroyResult(qr.result)
		qr.result = nil
	}
}

// Columns returns the column information
func (qr *QueryResult) Columns() []Column {
	return qr.columns
}

// RowCount returns the number of rows in the result
func (qr *QueryResult) RowCount() uint64 {
	return qr.rowCount
}

// Table copies the whole result into a resultset.Table
func (qr *QueryResult) Table() (*resultset.Table, error) {
	table := &resultset.Table{
		Columns:      make([]resultset.Column, len(qr.columns)),
		Rows:         make([][]any, 0, qr.rowCount),
		RowsAffected: int64(qr.rowsChanged),
	}
	for i, col := range qr.columns {
		table.Columns[i] = resultset.Column{Name: col.Name, Type: col.Type.String()}
	}

	for row := uint64(0); row < qr.rowCount; row++ {
		values := make([]any, len(qr.columns))
		for col := range qr.columns {
			v, err := qr.GetValue(uint64(col), row)
			if err != nil {
				return nil, err
			}
			values[col] = v
		}
		table.Rows = append(table.Rows, values)
	}

	return table, nil
}

// GetValue retrieves a value from the result set
func (qr *QueryResult) GetValue(col, row uint64) (interface{}, error) {
	if qr.result == nil {
		return nil, fmt.Errorf("result already closed")
	}

	if row >= qr.rowCount || col >= uint64(len(qr.columns)) {
		return nil, fmt.Errorf("invalid row or column index")
	}

	d := qr.duckdb
	if d.duckdbValueIsNull(qr.result, col, row) {
		return nil, nil
	}

	switch qr.columns[col].Type {
	case TypeBoolean:
		return d.duckdbValueBoolean(qr.result, col, row), nil
	case TypeTinyint:
		return d.duckdbValueInt8(qr.result, col, row), nil
	case TypeSmallint:
		return d.duckdbValueInt16(qr.result, col, row), nil
	case TypeInteger:
		return d.duckdbValueInt32(qr.result, col, row), nil
	case TypeBigint:
		return d.duckdbValueInt64(qr.result, col, row), nil
	case TypeUTinyint:
		return d.duckdbValueUint8(qr.result, col, row), nil
	case TypeUSmallint:
		return d.duckdbValueUint16(qr.result, col, row), nil
	case TypeUInteger:
		return d.duckdbValueUint32(qr.result, col, row), nil
	case TypeUBigint:
		return d.duckdbValueUint64(qr.result, col, row), nil
	case TypeFloat:
		return d.duckdbValueFloat(qr.result, col, row), nil
	case TypeDouble, TypeDecimal:
		return d.duckdbValueDouble(qr.result, col, row), nil
	case TypeDate:
		return duckdbDateToTime(d.duckdbValueDate(qr.result, col, row)), nil
	case TypeTime:
		return duckdbTimeToTime(d.duckdbValueTime(qr.result, col, row)), nil
	case TypeTimestamp, TypeTimestampS, TypeTimestampMS, TypeTimestampNS, TypeTimestampTZ:
		return duckdbTimestampToTime(d.duckdbValueTimestamp(qr.result, col, row)), nil
	case TypeUUID:
		text := qr.varchar(col, row)
		id, err := uuid.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid %q: %w", text, err)
		}
		return id, nil
	default:
		// HUGEINT, BLOB, INTERVAL and nested types come back in
		// their SQL text form
		return qr.varchar(col, row), nil
	}
}

// varchar reads a value cast to VARCHAR, freeing the engine-owned copy
func (qr *QueryResult) varchar(col, row uint64) string {
	ptr := qr.duckdb.duckdbValueVarchar(qr.result, col, row)
	if ptr == nil {
		return ""
	}
	defer qr.duckdb.duckdbFree(ptr)
	return ptrToString(ptr)
}

// getResultError retrieves the error message from a result
func (d *DuckDB) getResultError(result *Result) string {
	errPtr := d.duckdbResultError(result)
	if errPtr == nil {
		return "unknown error"
	}
	return ptrToString(errPtr)
}

// ptrToString converts a C string pointer to a Go string
func ptrToString(ptr unsafe.Pointer) string {
	if ptr == nil {
		return ""
	}

	var length int
	for *(*byte)(unsafe.Add(ptr, length)) != 0 {
		length++
	}

	return string(unsafe.Slice((*byte)(ptr), length))
}
