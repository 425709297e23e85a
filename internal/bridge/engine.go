// Package bridge drives an embedded engine on behalf of callers that only
// hold opaque database and connection handles. It owns handle lifecycle,
// query execution and the registration of Arrow streams as views.
package bridge

import (
	"github.com/connerohnesorge/dukdb-stream/internal/purego"
	"github.com/connerohnesorge/dukdb-stream/internal/resultset"
)

// Engine is what the bridge needs from the native library. *purego.DuckDB
// implements it.
type Engine interface {
	Open(path string, options map[string]string) (purego.Database, error)
	CloseDatabase(db purego.Database)
	Connect(db purego.Database) (purego.Connection, error)
	Disconnect(conn purego.Connection)
	QueryTable(conn purego.Connection, query string) (*resultset.Table, error)
	QueryArgs(conn purego.Connection, query string, args []any) (*resultset.Table, error)
	RegisterTableFunction(conn purego.Connection, fn purego.TableFunc) error
}

var _ Engine = (*purego.DuckDB)(nil)
