package driver

import (
	"context"
	"database/sql/driver"
	"sync"

	"github.com/connerohnesorge/dukdb-stream/internal/bridge"
)

// Connector implements the database/sql/driver.Connector interface. It opens
// the engine database on first use and closes it with the sql.DB.
type Connector struct {
	engine bridge.Engine
	path   string
	cfg    bridge.Config

	mu sync.Mutex
	db *bridge.Database
}

// NewConnector makes a connector over engine, for use with sql.OpenDB
func NewConnector(engine bridge.Engine, path string, cfg bridge.Config) *Connector {
	return &Connector{engine: engine, path: path, cfg: cfg}
}

// Connect returns a new connection
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.connect(false)
}

// connect opens a connection; with own set the connection also owns and
// closes the database
func (c *Connector) connect(own bool) (*Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		db, err := bridge.Open(c.engine, c.path, c.cfg)
		if err != nil {
			return nil, err
		}
		c.db = db
	}

	conn, err := c.db.Connect()
	if err != nil {
		return nil, err
	}
	res := &Conn{conn: conn}
	if own {
		res.db = c.db
	}
	return res, nil
}

// Driver returns the underlying driver
func (c *Connector) Driver() driver.Driver {
	return &Driver{}
}

// Close closes the database and any connection still open on it
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
