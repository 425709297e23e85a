package driver

import (
	"context"
	"database/sql/driver"
)

// Tx implements the database/sql/driver.Tx interface
type Tx struct {
	conn     *Conn
	finished bool
}

// Commit commits the transaction
func (tx *Tx) Commit() error {
	return tx.finish("COMMIT")
}

// Rollback rolls back the transaction
func (tx *Tx) Rollback() error {
	return tx.finish("ROLLBACK")
}

func (tx *Tx) finish(stmt string) error {
	if tx.finished {
		return driver.ErrBadConn
	}
	tx.finished = true
	_, err := tx.conn.exec(context.Background(), stmt)
	return err
}
