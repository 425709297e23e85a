// Package resultset holds materialized query results and renders them for
// humans.
package resultset

// Column describes one result column. Type is the engine's type name as it
// appears in printed results (e.g. "int64", "varchar").
type Column struct {
	Name string
	Type string
}

// Table is a fully materialized query result. Values are Go values produced
// by the engine binding: integers, floats, bool, string, time.Time or nil for
// NULL.
type Table struct {
	Columns      []Column
	Rows         [][]any
	RowsAffected int64
}

// ColumnNames returns the column names in order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Value returns the value at row, col
func (t *Table) Value(row, col int) any {
	return t.Rows[row][col]
}
