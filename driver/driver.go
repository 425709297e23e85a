// Package driver registers the "duckstream" database/sql driver. Every
// sql.DB opened with it owns one engine database; each pooled connection is
// a separate engine connection to it.
//
// The DSN is an optional database path followed by query options:
//
//	""                      in-memory database, one worker thread
//	":memory:?threads=4"    in-memory database, four worker threads
//	"/tmp/x.db?lib_dir=/opt/duckdb/lib"
//
// Streams are registered per connection through sql.Conn.Raw, see
// RegisterStream.
package driver

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/connerohnesorge/dukdb-stream/internal/bridge"
	"github.com/connerohnesorge/dukdb-stream/internal/purego"
)

// Name is the name the driver is registered under
const Name = "duckstream"

func init() {
	sql.Register(Name, &Driver{})
}

// Driver implements the database/sql/driver.Driver interface
type Driver struct{}

// Open returns a new connection to a database of its own. database/sql only
// uses this when the connector path is bypassed.
func (d *Driver) Open(name string) (driver.Conn, error) {
	c, err := d.OpenConnector(name)
	if err != nil {
		return nil, err
	}
	return c.(*Connector).connect(true)
}

// OpenConnector parses the DSN and loads the engine library
func (d *Driver) OpenConnector(name string) (driver.Connector, error) {
	dsn, err := parseDSN(name)
	if err != nil {
		return nil, err
	}

	engine, err := purego.Shared(dsn.libDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	return NewConnector(engine, dsn.path, bridge.Config{Threads: dsn.threads}), nil
}

type dsn struct {
	path    string
	threads int
	libDir  string
}

func parseDSN(name string) (dsn, error) {
	path, rawQuery, _ := strings.Cut(name, "?")
	res := dsn{path: path}
	if res.path == ":memory:" {
		res.path = ""
	}

	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return dsn{}, fmt.Errorf("invalid dsn %q: %w", name, err)
	}
	for key, values := range params {
		value := values[len(values)-1]
		switch key {
		case "threads":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return dsn{}, fmt.Errorf("invalid dsn %q: threads must be a non-negative integer", name)
			}
			res.threads = n
		case "lib_dir":
			res.libDir = value
		default:
			return dsn{}, fmt.Errorf("invalid dsn %q: unknown option %s", name, key)
		}
	}
	return res, nil
}
