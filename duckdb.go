// Package dukdbstream embeds DuckDB through purego and lets Go code expose
// Arrow record streams to it as queryable views.
//
// The native library is loaded once per process from DUCKDB_LIB_DIR or the
// system loader path.
//
// Usage:
//
//	db, conn, err := dukdbstream.OpenInMemory()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dukdbstream.Close(db, conn)
//
//	err = dukdbstream.RegisterStream(conn, "t", produce, release, state)
//	dukdbstream.Execute(conn, "select sum(x) from t")
//
// Importing this package also registers the "duckstream" database/sql
// driver.
package dukdbstream

import (
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/connerohnesorge/dukdb-stream/internal/arrowscan"
	"github.com/connerohnesorge/dukdb-stream/internal/bridge"
	"github.com/connerohnesorge/dukdb-stream/internal/purego"
	"github.com/connerohnesorge/dukdb-stream/internal/resultset"

	// Register the driver
	_ "github.com/connerohnesorge/dukdb-stream/driver"
)

// Version returns the version of the bridge
const Version = "0.2.0"

type (
	// Database is an open in-memory database
	Database = bridge.Database
	// Connection is a connection to a Database
	Connection = bridge.Connection
	// Config tunes OpenInMemoryWith
	Config = bridge.Config
	// Table is a materialized query result
	Table = resultset.Table
	// ProduceFunc returns a fresh record stream for a registered view
	ProduceFunc = arrowscan.ProduceFunc
	// ReleaseFunc frees a registered view's state, exactly once
	ReleaseFunc = arrowscan.ReleaseFunc
)

// OpenInMemory opens a non-persistent database and a connection to it
func OpenInMemory() (*Database, *Connection, error) {
	return OpenInMemoryWith(Config{})
}

// OpenInMemoryWith is OpenInMemory with explicit settings
func OpenInMemoryWith(cfg Config) (*Database, *Connection, error) {
	engine, err := purego.Shared("")
	if err != nil {
		return nil, nil, err
	}
	return bridge.OpenInMemory(engine, cfg)
}

// Close releases everything registered on conn, disconnects it and closes db
func Close(db *Database, conn *Connection) error {
	return bridge.Close(db, conn)
}

// Execute runs sql on conn and prints the result or the engine error
func Execute(conn *Connection, sql string) {
	conn.Execute(sql)
}

// Query runs sql on conn and returns the result. args are bound to the
// placeholders of sql in order.
func Query(conn *Connection, sql string, args ...any) (*Table, error) {
	return conn.Query(sql, args...)
}

// QueryArrow runs sql on conn and returns the result as Arrow records
// allocated from the default allocator. The caller releases the reader.
func QueryArrow(conn *Connection, sql string, args ...any) (array.RecordReader, error) {
	return conn.QueryArrow(nil, sql, args...)
}

// RegisterStream makes produce(state) queryable as the view name on conn.
// release(state) is called exactly once, once the view is replaced or conn
// is closed and no scan still reads from it.
func RegisterStream(conn *Connection, name string, produce ProduceFunc, release ReleaseFunc, state any) error {
	return conn.RegisterStream(name, produce, release, state)
}
