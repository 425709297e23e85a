package driver

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/connerohnesorge/dukdb-stream/internal/resultset"
)

// Rows implements the database/sql/driver.Rows interface over a
// materialized result
type Rows struct {
	table *resultset.Table
	pos   int
	ctx   context.Context // Context for cancellation
}

// Columns returns the column names
func (r *Rows) Columns() []string {
	return r.table.ColumnNames()
}

// Close closes the rows iterator
func (r *Rows) Close() error {
	r.pos = r.table.Len()
	return nil
}

// Next populates the provided slice with the next row values
func (r *Rows) Next(dest []driver.Value) error {
	if r.ctx != nil {
		if err := r.ctx.Err(); err != nil {
			return err
		}
	}
	if r.pos >= r.table.Len() {
		return io.EOF
	}

	row := r.table.Rows[r.pos]
	for i := range dest {
		if i >= len(row) {
			return fmt.Errorf("destination has more columns than result")
		}
		dest[i] = convertToDriverValue(row[i])
	}
	r.pos++
	return nil
}

// sqlTypeNames maps engine type names onto the names SQL declarations use
var sqlTypeNames = map[string]string{
	"boolean":                  "BOOLEAN",
	"int8":                     "TINYINT",
	"int16":                    "SMALLINT",
	"int32":                    "INTEGER",
	"int64":                    "BIGINT",
	"int128":                   "HUGEINT",
	"uint8":                    "UTINYINT",
	"uint16":                   "USMALLINT",
	"uint32":                   "UINTEGER",
	"uint64":                   "UBIGINT",
	"uint128":                  "UHUGEINT",
	"float":                    "FLOAT",
	"double":                   "DOUBLE",
	"decimal":                  "DECIMAL",
	"varchar":                  "VARCHAR",
	"blob":                     "BLOB",
	"date":                     "DATE",
	"time":                     "TIME",
	"timestamp":                "TIMESTAMP",
	"timestamp with time zone": "TIMESTAMPTZ",
	"interval":                 "INTERVAL",
	"uuid":                     "UUID",
}

// ColumnTypeDatabaseTypeName returns the database type name
func (r *Rows) ColumnTypeDatabaseTypeName(index int) string {
	if index < 0 || index >= len(r.table.Columns) {
		return ""
	}
	typ := r.table.Columns[index].Type
	if name, ok := sqlTypeNames[typ]; ok {
		return name
	}
	return strings.ToUpper(typ)
}

// ColumnTypeNullable returns whether the column can be null
func (r *Rows) ColumnTypeNullable(index int) (nullable, ok bool) {
	// the C API does not report nullability of result columns
	return true, false
}

// ColumnTypeScanType returns the Go type for scanning
func (r *Rows) ColumnTypeScanType(index int) reflect.Type {
	if index < 0 || index >= len(r.table.Columns) {
		return nil
	}

	switch r.table.Columns[index].Type {
	case "boolean":
		return reflect.TypeOf(false)
	case "int8", "int16", "int32", "int64", "uint8", "uint16", "uint32":
		return reflect.TypeOf(int64(0))
	case "uint64":
		return reflect.TypeOf(uint64(0))
	case "float", "double", "decimal":
		return reflect.TypeOf(float64(0))
	case "date", "time", "timestamp", "timestamp with time zone":
		return reflect.TypeOf(time.Time{})
	default:
		return reflect.TypeOf("")
	}
}

// convertToDriverValue widens engine values to the types driver.Value allows
func convertToDriverValue(val any) driver.Value {
	switch v := val.(type) {
	case nil:
		return nil
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case float32:
		return float64(v)
	case uuid.UUID:
		return v.String()
	default:
		// int64, uint64, float64, bool, string, []byte, time.Time
		return v
	}
}
