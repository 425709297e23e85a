package bridge

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hashicorp/go-multierror"

	"github.com/connerohnesorge/dukdb-stream/internal/arrowscan"
	"github.com/connerohnesorge/dukdb-stream/internal/purego"
	"github.com/connerohnesorge/dukdb-stream/internal/resultset"
)

// ErrClosed is returned when a closed database or connection is used
var ErrClosed = errors.New("bridge: use of closed handle")

// Config tunes a database opened through the bridge
type Config struct {
	// Threads is the engine's worker thread count, 1 when zero. Stream
	// producers run on whichever thread scans them, so more than one thread
	// requires producers that tolerate that.
	Threads int
	// Output receives Execute's rendering, os.Stdout when nil
	Output io.Writer
}

func (c Config) options() map[string]string {
	threads := c.Threads
	if threads <= 0 {
		threads = 1
	}
	return map[string]string{"threads": strconv.Itoa(threads)}
}

// Database is an open engine database
type Database struct {
	engine      Engine
	handle      purego.Database
	output      io.Writer
	connections sync.Map // map[uint64]*Connection
	nextConnID  atomic.Uint64
	closed      atomic.Bool

	mu             sync.Mutex
	scanRegistered bool
}

// Open opens a database at path, in memory when path is empty
func Open(engine Engine, path string, cfg Config) (*Database, error) {
	handle, err := engine.Open(path, cfg.options())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	return &Database{engine: engine, handle: handle, output: out}, nil
}

// OpenInMemory opens a non-persistent database and one connection to it
func OpenInMemory(engine Engine, cfg Config) (*Database, *Connection, error) {
	db, err := Open(engine, "", cfg)
	if err != nil {
		return nil, nil, err
	}

	conn, err := db.Connect()
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, conn, nil
}

// Close releases conn's dependencies, disconnects it and closes db
func Close(db *Database, conn *Connection) error {
	var errs *multierror.Error
	if conn != nil {
		errs = multierror.Append(errs, conn.Close())
	}
	if db != nil {
		errs = multierror.Append(errs, db.Close())
	}
	return errs.ErrorOrNil()
}

// Connect opens a new connection
func (db *Database) Connect() (*Connection, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}

	handle, err := db.engine.Connect(db.handle)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	conn := &Connection{
		id:     db.nextConnID.Add(1),
		db:     db,
		handle: handle,
		out:    db.output,
		deps:   NewDependencies(),
	}
	db.connections.Store(conn.id, conn)
	return conn, nil
}

// Close closes any connections still open and then the database itself
func (db *Database) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("close database: %w", ErrClosed)
	}

	var errs *multierror.Error
	db.connections.Range(func(_, value any) bool {
		if conn, ok := value.(*Connection); ok {
			errs = multierror.Append(errs, conn.Close())
		}
		return true
	})

	db.engine.CloseDatabase(db.handle)
	log.Printf("[DEBUG] database closed")
	return errs.ErrorOrNil()
}

// ensureScanFunction registers the stream scan function the first time a
// stream is registered. The engine's catalog is database-wide.
func (db *Database) ensureScanFunction(conn purego.Connection) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.scanRegistered {
		return nil
	}
	if err := db.engine.RegisterTableFunction(conn, arrowscan.Function()); err != nil {
		return fmt.Errorf("register %s: %w", arrowscan.FunctionName, err)
	}
	db.scanRegistered = true
	return nil
}

// Connection is one engine connection with the objects it keeps alive
type Connection struct {
	id     uint64
	db     *Database
	handle purego.Connection
	out    io.Writer
	deps   *Dependencies

	mu     sync.Mutex
	closed bool
}

// SetOutput redirects Execute's rendering
func (c *Connection) SetOutput(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = w
}

// Dependencies returns the connection's dependency registry
func (c *Connection) Dependencies() *Dependencies {
	return c.deps
}

// Close releases the dependency registry and then disconnects
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	c.deps.Release()
	c.db.engine.Disconnect(c.handle)
	c.db.connections.Delete(c.id)
	return nil
}

// Query runs sql and returns its materialized result. args are bound to the
// statement's placeholders in order.
func (c *Connection) Query(sql string, args ...any) (*resultset.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if len(args) > 0 {
		return c.db.engine.QueryArgs(c.handle, sql, args)
	}
	return c.db.engine.QueryTable(c.handle, sql)
}

// QueryArrow runs sql like Query and returns the result as Arrow records
// allocated from mem, the default allocator when nil. The caller releases
// the reader.
func (c *Connection) QueryArrow(mem memory.Allocator, sql string, args ...any) (array.RecordReader, error) {
	t, err := c.Query(sql, args...)
	if err != nil {
		return nil, err
	}
	return t.RecordReader(mem, 0)
}

// Execute runs sql and prints the result, or the engine's error message, to
// the connection's output. Nothing is returned.
func (c *Connection) Execute(sql string) {
	t, err := c.Query(sql)

	c.mu.Lock()
	out := c.out
	c.mu.Unlock()

	if err != nil {
		fmt.Fprintf(out, "Error: %s\n", EngineMessage(err))
		return
	}
	if err := resultset.Render(out, t); err != nil {
		log.Printf("[WARN] can't print result of %q: %v", sql, err)
	}
}

// EngineMessage returns the engine's own text for err when there is one
func EngineMessage(err error) string {
	var e *purego.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// RegisterStream makes the stream produced by produce(state) queryable as
// the view name. release(state) runs exactly once, after the view has been
// replaced or the connection closed and no scan is reading from it.
func (c *Connection) RegisterStream(name string, produce arrowscan.ProduceFunc, release arrowscan.ReleaseFunc, state any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		if release != nil {
			release(state)
		}
		return ErrClosed
	}

	f := arrowscan.NewFactory(produce, release, state)
	if err := c.db.ensureScanFunction(c.handle); err != nil {
		f.Release()
		return err
	}

	args := arrowscan.Args(f)
	sql := fmt.Sprintf("CREATE OR REPLACE TEMPORARY VIEW %s AS SELECT * FROM %s(%d, %d, %d)",
		QuoteIdent(name), arrowscan.FunctionName, args[0], args[1], args[2])
	if _, err := c.db.engine.QueryTable(c.handle, sql); err != nil {
		f.Release()
		return fmt.Errorf("register stream %q: %w", name, err)
	}

	c.deps.Put(StreamNamespace, name, f)
	log.Printf("[DEBUG] registered stream %q as factory %d", name, f.Handle())
	return nil
}

// QuoteIdent quotes name as an SQL identifier
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
