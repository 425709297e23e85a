package driver

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connerohnesorge/dukdb-stream/internal/bridge"
	"github.com/connerohnesorge/dukdb-stream/internal/purego"
	"github.com/connerohnesorge/dukdb-stream/internal/resultset"
)

// scripted answers a few fixed statements and records the rest
type scripted struct {
	path       string
	options    map[string]string
	statements []string
	args       [][]any
	funcs      int
	closed     int
}

func (s *scripted) Open(path string, options map[string]string) (purego.Database, error) {
	s.path, s.options = path, options
	return 1, nil
}

func (s *scripted) CloseDatabase(purego.Database) { s.closed++ }

func (s *scripted) Connect(purego.Database) (purego.Connection, error) { return 1, nil }

func (s *scripted) Disconnect(purego.Connection) {}

func (s *scripted) RegisterTableFunction(purego.Connection, purego.TableFunc) error {
	s.funcs++
	return nil
}

func (s *scripted) QueryTable(_ purego.Connection, query string) (*resultset.Table, error) {
	s.statements = append(s.statements, query)
	switch {
	case query == "SELECT 1", strings.HasPrefix(query, "CREATE OR REPLACE TEMPORARY VIEW"),
		query == "BEGIN TRANSACTION", query == "COMMIT", query == "ROLLBACK":
		return &resultset.Table{}, nil
	case query == "insert into t values (1), (2)":
		return &resultset.Table{RowsAffected: 2}, nil
	case query == "select * from t":
		return &resultset.Table{
			Columns: []resultset.Column{
				{Name: "id", Type: "int32"},
				{Name: "name", Type: "varchar"},
				{Name: "score", Type: "float"},
				{Name: "at", Type: "timestamp"},
			},
			Rows: [][]any{
				{int32(1), "ada", float32(0.5), time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
				{int32(2), nil, nil, nil},
			},
		}, nil
	}
	return nil, &purego.Error{Op: "query", Message: "Parser Error: syntax error"}
}

func (s *scripted) QueryArgs(conn purego.Connection, query string, args []any) (*resultset.Table, error) {
	s.args = append(s.args, args)
	switch query {
	case "insert into t values (?, ?)":
		s.statements = append(s.statements, query)
		if len(args) != 2 {
			return nil, &purego.Error{Op: "bind", Message: "statement has 2 parameters, got 1 arguments"}
		}
		return &resultset.Table{RowsAffected: 1}, nil
	case "select * from t where id > ?":
		t, err := s.QueryTable(conn, "select * from t")
		if err != nil {
			return nil, err
		}
		t.Rows = t.Rows[args[0].(int64):]
		return t, nil
	}
	s.statements = append(s.statements, query)
	return nil, &purego.Error{Op: "prepare", Message: "Parser Error: syntax error"}
}

func openDB(t *testing.T) (*sql.DB, *scripted) {
	t.Helper()
	e := &scripted{}
	db := sql.OpenDB(NewConnector(e, "", bridge.Config{Threads: 2}))
	db.SetMaxOpenConns(1)
	return db, e
}

func TestQueryRows(t *testing.T) {
	db, e := openDB(t)
	defer db.Close()

	rows, err := db.Query("select * from t")
	require.NoError(t, err)
	defer rows.Close()

	types, err := rows.ColumnTypes()
	require.NoError(t, err)
	assert.Equal(t, "INTEGER", types[0].DatabaseTypeName())
	assert.Equal(t, "VARCHAR", types[1].DatabaseTypeName())

	type row struct {
		id    int
		name  sql.NullString
		score sql.NullFloat64
		at    sql.NullTime
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.id, &r.name, &r.score, &r.at))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].id)
	assert.Equal(t, "ada", got[0].name.String)
	assert.InDelta(t, 0.5, got[0].score.Float64, 1e-9)
	assert.Equal(t, 2024, got[0].at.Time.Year())
	assert.False(t, got[1].name.Valid)
	assert.False(t, got[1].at.Valid)

	assert.Equal(t, "2", e.options["threads"])
}

func TestExecAndErrors(t *testing.T) {
	db, _ := openDB(t)
	defer db.Close()

	res, err := db.Exec("insert into t values (1), (2)")
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = db.Exec("selec 1")
	require.ErrorContains(t, err, "Parser Error")

	_, err = db.Exec("insert into t values (?, ?)", 1)
	require.ErrorContains(t, err, "statement has 2 parameters")
}

func TestPlaceholderArguments(t *testing.T) {
	db, e := openDB(t)
	defer db.Close()

	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	res, err := db.Exec("insert into t values (?, ?)", 3, at)
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var name string
	require.NoError(t, db.QueryRow("select * from t where id > ?", 1).Scan(new(int), new(sql.NullString), new(sql.NullFloat64), new(sql.NullTime)))

	stmt, err := db.Prepare("select * from t where id > ?")
	require.NoError(t, err)
	defer stmt.Close()
	rows, err := stmt.Query(int64(0))
	require.NoError(t, err)
	count := 0
	for rows.Next() {
		var id int
		var nm sql.NullString
		require.NoError(t, rows.Scan(&id, &nm, new(sql.NullFloat64), new(sql.NullTime)))
		if count == 0 {
			name = nm.String
		}
		count++
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, 2, count)
	assert.Equal(t, "ada", name)

	// database/sql converts int to int64 before the driver sees it
	assert.Equal(t, [][]any{{int64(3), at}, {int64(1)}, {int64(0)}}, e.args)

	_, err = db.Exec("insert into t values (@id)", sql.Named("id", 1))
	require.ErrorContains(t, err, `named argument "id"`)
}

func TestTransactions(t *testing.T) {
	db, e := openDB(t)
	defer db.Close()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx, err = db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	assert.Subset(t, e.statements, []string{"BEGIN TRANSACTION", "COMMIT", "ROLLBACK"})
}

func TestRegisterStreamThroughRaw(t *testing.T) {
	db, e := openDB(t)
	ctx := context.Background()

	conn, err := db.Conn(ctx)
	require.NoError(t, err)

	released := 0
	produce := func(any) (array.RecordReader, error) { return nil, nil }
	require.NoError(t, RegisterStream(ctx, conn, "t", produce, func(any) { released++ }, nil))
	assert.Equal(t, 1, e.funcs)
	assert.Contains(t, e.statements[len(e.statements)-1], `VIEW "t"`)
	assert.Equal(t, 0, released)

	require.NoError(t, conn.Close())
	require.NoError(t, db.Close())
	assert.Equal(t, 1, released)
	assert.Equal(t, 1, e.closed)
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		in   string
		want dsn
		err  bool
	}{
		{in: "", want: dsn{}},
		{in: ":memory:", want: dsn{}},
		{in: ":memory:?threads=4", want: dsn{threads: 4}},
		{in: "/tmp/x.db?lib_dir=/opt/lib&threads=2", want: dsn{path: "/tmp/x.db", threads: 2, libDir: "/opt/lib"}},
		{in: "?threads=-1", err: true},
		{in: "?colour=red", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDSN(tt.in)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertToDriverValue(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", convertToDriverValue(id))
	assert.Equal(t, int64(-3), convertToDriverValue(int8(-3)))
	assert.Equal(t, int64(7), convertToDriverValue(uint32(7)))
	assert.Equal(t, uint64(9), convertToDriverValue(uint64(9)))
	assert.Nil(t, convertToDriverValue(nil))
}
