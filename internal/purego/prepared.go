package purego

import (
	"fmt"
	"runtime"
	"time"
	"unsafe"

	"github.com/connerohnesorge/dukdb-stream/internal/resultset"
)

// Prepare prepares a SQL statement. The caller must DestroyPrepared it.
func (d *DuckDB) Prepare(conn Connection, query string) (PreparedStatement, error) {
	var stmt PreparedStatement
	if status := d.duckdbPrepare(conn, cString(query), &stmt); status != StateSuccess {
		msg := ptrToString(d.duckdbPrepareError(stmt))
		d.DestroyPrepared(stmt)
		return 0, &Error{Op: "prepare", Message: msg}
	}

	return stmt, nil
}

// NumParams returns the number of placeholders in a prepared statement
func (d *DuckDB) NumParams(stmt PreparedStatement) int {
	return int(d.duckdbNParams(stmt))
}

// ExecutePrepared executes a prepared statement with its current bindings.
// The caller must Close the result.
func (d *DuckDB) ExecutePrepared(stmt PreparedStatement) (*QueryResult, error) {
	result := new(Result)

	runtime.LockOSThread()
	status := d.duckdbExecutePrepared(stmt, result)
	runtime.UnlockOSThread()

	if status != StateSuccess {
		errMsg := d.getResultError(result)
		d.duckdbDestroyResult(result)
		return nil, &Error{Op: "execute prepared", Message: errMsg}
	}

	return d.createQueryResult(result), nil
}

// DestroyPrepared destroys a prepared statement
func (d *DuckDB) DestroyPrepared(stmt PreparedStatement) {
	if stmt != 0 {
		d.duckdbDestroyPrepare(&stmt)
	}
}

// QueryArgs prepares query, binds args to its placeholders in order and
// materializes the result. Without args it is QueryTable.
func (d *DuckDB) QueryArgs(conn Connection, query string, args []any) (*resultset.Table, error) {
	if len(args) == 0 {
		return d.QueryTable(conn, query)
	}

	stmt, err := d.Prepare(conn, query)
	if err != nil {
		return nil, err
	}
	defer d.DestroyPrepared(stmt)

	if n := d.NumParams(stmt); n != len(args) {
		return nil, &Error{Op: "bind", Message: fmt.Sprintf("statement has %d parameters, got %d arguments", n, len(args))}
	}
	for i, arg := range args {
		if err := d.BindValue(stmt, uint64(i), arg); err != nil {
			return nil, err
		}
	}

	qr, err := d.ExecutePrepared(stmt)
	if err != nil {
		return nil, err
	}
	defer qr.Close()

	return qr.Table()
}

// BindValue binds a value to a prepared statement parameter. idx is 0-based.
func (d *DuckDB) BindValue(stmt PreparedStatement, idx uint64, value any) error {
	// DuckDB uses 1-based indexing for parameters
	paramIdx := idx + 1

	var status uint32
	switch v := value.(type) {
	case nil:
		status = d.duckdbBindNull(stmt, paramIdx)
	case bool:
		status = d.duckdbBindBoolean(stmt, paramIdx, v)
	case int8:
		status = d.duckdbBindInt8(stmt, paramIdx, v)
	case int16:
		status = d.duckdbBindInt16(stmt, paramIdx, v)
	case int32:
		status = d.duckdbBindInt32(stmt, paramIdx, v)
	case int:
		status = d.duckdbBindInt64(stmt, paramIdx, int64(v))
	case int64:
		status = d.duckdbBindInt64(stmt, paramIdx, v)
	case uint8:
		status = d.duckdbBindUint8(stmt, paramIdx, v)
	case uint16:
		status = d.duckdbBindUint16(stmt, paramIdx, v)
	case uint32:
		status = d.duckdbBindUint32(stmt, paramIdx, v)
	case uint:
		status = d.duckdbBindUint64(stmt, paramIdx, uint64(v))
	case uint64:
		status = d.duckdbBindUint64(stmt, paramIdx, v)
	case float32:
		status = d.duckdbBindFloat(stmt, paramIdx, v)
	case float64:
		status = d.duckdbBindDouble(stmt, paramIdx, v)
	case string:
		status = d.duckdbBindVarchar(stmt, paramIdx, cString(v))
	case []byte:
		if len(v) == 0 {
			status = d.duckdbBindBlob(stmt, paramIdx, nil, 0)
		} else {
			status = d.duckdbBindBlob(stmt, paramIdx, unsafe.Pointer(&v[0]), uint64(len(v)))
		}
	case time.Time:
		status = d.duckdbBindTimestamp(stmt, paramIdx, timeToDuckDBTimestamp(v))
	default:
		// uuid.UUID and other Stringers go in as text and are cast by the engine
		status = d.duckdbBindVarchar(stmt, paramIdx, cString(fmt.Sprint(v)))
	}

	if status != StateSuccess {
		return fmt.Errorf("failed to bind %T parameter at index %d", value, idx)
	}
	return nil
}

// ClearBindings clears all parameter bindings on a prepared statement
func (d *DuckDB) ClearBindings(stmt PreparedStatement) error {
	if d.duckdbClearBindings(stmt) != StateSuccess {
		return fmt.Errorf("failed to clear bindings")
	}
	return nil
}
