package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/connerohnesorge/dukdb-stream/internal/arrowscan"
	"github.com/connerohnesorge/dukdb-stream/internal/bridge"
)

// Conn implements the database/sql/driver.Conn interface
type Conn struct {
	conn *bridge.Connection
	db   *bridge.Database // set when the connection owns its database
}

// Prepare returns a prepared statement
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

// PrepareContext returns a statement that runs query on this connection
func (c *Conn) PrepareContext(_ context.Context, query string) (driver.Stmt, error) {
	return &Stmt{conn: c, query: query}, nil
}

// Close closes the connection, releasing the streams registered on it
func (c *Conn) Close() error {
	if c.db != nil {
		return bridge.Close(c.db, c.conn)
	}
	return c.conn.Close()
}

// Begin starts a transaction
func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx starts a transaction with options
func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if opts.ReadOnly {
		return nil, errors.New("duckstream: read-only transactions are not supported")
	}
	if _, err := c.exec(ctx, "BEGIN TRANSACTION"); err != nil {
		return nil, err
	}
	return &Tx{conn: c}, nil
}

// ExecContext executes a query that doesn't return rows
func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	bound, err := namedValuesToArgs(args)
	if err != nil {
		return nil, err
	}
	return c.exec(ctx, query, bound...)
}

func (c *Conn) exec(ctx context.Context, query string, args ...any) (driver.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := c.conn.Query(query, args...)
	if err != nil {
		return nil, translate(err)
	}
	return &Result{rowsAffected: t.RowsAffected}, nil
}

// QueryContext executes a query that returns rows
func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	bound, err := namedValuesToArgs(args)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := c.conn.Query(query, bound...)
	if err != nil {
		return nil, translate(err)
	}
	return &Rows{table: t, ctx: ctx}, nil
}

// Ping verifies the connection
func (c *Conn) Ping(ctx context.Context) error {
	_, err := c.exec(ctx, "SELECT 1")
	return err
}

// RegisterStream exposes produce(state) as the view name on this
// connection, see bridge.Connection.RegisterStream
func (c *Conn) RegisterStream(name string, produce arrowscan.ProduceFunc, release arrowscan.ReleaseFunc, state any) error {
	return translate(c.conn.RegisterStream(name, produce, release, state))
}

// RegisterStream registers a stream on the driver connection behind conn.
// The view only exists on that connection.
func RegisterStream(ctx context.Context, conn *sql.Conn, name string, produce arrowscan.ProduceFunc, release arrowscan.ReleaseFunc, state any) error {
	return conn.Raw(func(dc any) error {
		c, ok := dc.(*Conn)
		if !ok {
			return fmt.Errorf("duckstream: not a duckstream connection: %T", dc)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return c.RegisterStream(name, produce, release, state)
	})
}

// namedValuesToArgs orders args for positional binding. Only ordinal
// placeholders ($1 or ?) exist in the engine, named arguments are rejected.
func namedValuesToArgs(args []driver.NamedValue) ([]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]any, len(args))
	for _, arg := range args {
		if arg.Name != "" {
			return nil, fmt.Errorf("duckstream: named argument %q is not supported", arg.Name)
		}
		if arg.Ordinal < 1 || arg.Ordinal > len(args) {
			return nil, fmt.Errorf("duckstream: argument ordinal %d out of range", arg.Ordinal)
		}
		out[arg.Ordinal-1] = arg.Value
	}
	return out, nil
}

// translate maps a closed connection onto driver.ErrBadConn so database/sql
// discards it
func translate(err error) error {
	if errors.Is(err, bridge.ErrClosed) {
		return driver.ErrBadConn
	}
	return err
}

// Result implements driver.Result
type Result struct {
	rowsAffected int64
}

// LastInsertId is not supported by the engine
func (r *Result) LastInsertId() (int64, error) {
	return 0, errors.New("duckstream: LastInsertId is not supported")
}

// RowsAffected returns the number of affected rows
func (r *Result) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}
