package bridge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/connerohnesorge/dukdb-stream/internal/purego"
	"github.com/connerohnesorge/dukdb-stream/internal/resultset"
)

// fakeEngine stands in for the native library. It understands just enough
// SQL to define views over a table function and to select from them, and it
// drives table functions the way the engine does: bind, init, scan until an
// empty chunk, then drop the scan and bind state.
type fakeEngine struct {
	opened       int
	closed       int
	connected    int
	disconnected int
	options      map[string]string
	funcs        map[string]purego.TableFunc
	views        map[string][]uint64
	failViews    map[string]bool
	queries      []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		funcs:     make(map[string]purego.TableFunc),
		views:     make(map[string][]uint64),
		failViews: make(map[string]bool),
	}
}

func (e *fakeEngine) Open(path string, options map[string]string) (purego.Database, error) {
	e.opened++
	e.options = options
	return purego.Database(1), nil
}

func (e *fakeEngine) CloseDatabase(purego.Database) { e.closed++ }

func (e *fakeEngine) Connect(purego.Database) (purego.Connection, error) {
	e.connected++
	return purego.Connection(e.connected), nil
}

func (e *fakeEngine) Disconnect(purego.Connection) { e.disconnected++ }

func (e *fakeEngine) RegisterTableFunction(_ purego.Connection, fn purego.TableFunc) error {
	if _, ok := e.funcs[fn.Name]; ok {
		return &purego.Error{Op: "register table function", Message: "already exists"}
	}
	e.funcs[fn.Name] = fn
	return nil
}

var (
	createView = regexp.MustCompile(`^CREATE OR REPLACE TEMPORARY VIEW "(.+)" AS SELECT \* FROM (\w+)\((\d+), (\d+), (\d+)\)$`)
	selectAll  = regexp.MustCompile(`^(?i)select \* from (\w+)$`)
	selectSum  = regexp.MustCompile(`^(?i)select sum\((\w+)\) from (\w+)$`)
	selectGt   = regexp.MustCompile(`^(?i)select \* from (\w+) where (\w+) > \?$`)
)

func (e *fakeEngine) QueryTable(_ purego.Connection, query string) (*resultset.Table, error) {
	e.queries = append(e.queries, query)

	if m := createView.FindStringSubmatch(query); m != nil {
		if e.failViews[m[1]] {
			return nil, &purego.Error{Op: "query", Message: fmt.Sprintf("Catalog Error: cannot create view %s", m[1])}
		}
		if _, ok := e.funcs[m[2]]; !ok {
			return nil, &purego.Error{Op: "query", Message: fmt.Sprintf("Catalog Error: Table Function with name %s does not exist!", m[2])}
		}
		var args []uint64
		for _, s := range m[3:] {
			var v uint64
			fmt.Sscan(s, &v)
			args = append(args, v)
		}
		// identifiers match case-insensitively, quoted or not
		e.views[strings.ToLower(m[1])] = args
		return &resultset.Table{}, nil
	}

	if m := selectAll.FindStringSubmatch(query); m != nil {
		return e.scanView(m[1])
	}

	if m := selectSum.FindStringSubmatch(query); m != nil {
		t, err := e.scanView(m[2])
		if err != nil {
			return nil, err
		}
		col := -1
		for i, c := range t.Columns {
			if c.Name == m[1] {
				col = i
			}
		}
		if col < 0 {
			return nil, &purego.Error{Op: "query", Message: fmt.Sprintf("Binder Error: column %s not found", m[1])}
		}
		var sum int64
		for _, row := range t.Rows {
			if v, ok := row[col].(int64); ok {
				sum += v
			}
		}
		return &resultset.Table{
			Columns: []resultset.Column{{Name: "sum(" + m[1] + ")", Type: "int128"}},
			Rows:    [][]any{{sum}},
		}, nil
	}

	if strings.EqualFold(query, "select 42 as answer") {
		return &resultset.Table{
			Columns: []resultset.Column{{Name: "answer", Type: "int32"}},
			Rows:    [][]any{{int32(42)}},
		}, nil
	}

	return nil, &purego.Error{Op: "query", Message: fmt.Sprintf("Parser Error: syntax error at or near %q", query)}
}

// QueryArgs understands one parameterized shape: a filter on an int64 column
func (e *fakeEngine) QueryArgs(_ purego.Connection, query string, args []any) (*resultset.Table, error) {
	e.queries = append(e.queries, query)

	m := selectGt.FindStringSubmatch(query)
	if m == nil {
		return nil, &purego.Error{Op: "prepare", Message: fmt.Sprintf("Parser Error: syntax error at or near %q", query)}
	}
	if len(args) != 1 {
		return nil, &purego.Error{Op: "bind", Message: fmt.Sprintf("statement has 1 parameters, got %d arguments", len(args))}
	}
	bound, ok := args[0].(int64)
	if !ok {
		return nil, fmt.Errorf("failed to bind %T parameter at index 0", args[0])
	}

	t, err := e.scanView(m[1])
	if err != nil {
		return nil, err
	}
	col := -1
	for i, c := range t.Columns {
		if c.Name == m[2] {
			col = i
		}
	}
	if col < 0 {
		return nil, &purego.Error{Op: "execute prepared", Message: fmt.Sprintf("Binder Error: column %s not found", m[2])}
	}
	rows := t.Rows[:0]
	for _, row := range t.Rows {
		if v, ok := row[col].(int64); ok && v > bound {
			rows = append(rows, row)
		}
	}
	t.Rows = rows
	return t, nil
}

func (e *fakeEngine) scanView(name string) (*resultset.Table, error) {
	args, ok := e.views[strings.ToLower(name)]
	if !ok {
		return nil, &purego.Error{Op: "query", Message: fmt.Sprintf("Catalog Error: Table with name %s does not exist!", name)}
	}
	fn := e.funcs["arrow_stream_scan"]

	b := &fakeBinder{params: args}
	bindData, err := fn.Bind(b)
	if err != nil {
		return nil, &purego.Error{Op: "query", Message: err.Error()}
	}
	defer release(bindData)

	initData, err := fn.Init(bindData)
	if err != nil {
		return nil, &purego.Error{Op: "query", Message: err.Error()}
	}
	defer release(initData)

	t := &resultset.Table{}
	for i, n := range b.names {
		t.Columns = append(t.Columns, resultset.Column{Name: n, Type: b.types[i].String()})
	}
	for {
		chunk := &fakeChunk{capacity: 2048}
		for range b.types {
			chunk.cols = append(chunk.cols, &fakeVector{vals: make([]any, chunk.capacity)})
		}
		n, err := fn.Scan(initData, chunk)
		if err != nil {
			return nil, &purego.Error{Op: "query", Message: err.Error()}
		}
		if n == 0 {
			return t, nil
		}
		for r := 0; r < n; r++ {
			row := make([]any, len(chunk.cols))
			for c, col := range chunk.cols {
				row[c] = col.vals[r]
			}
			t.Rows = append(t.Rows, row)
		}
	}
}

func release(v any) {
	if r, ok := v.(purego.Releaser); ok {
		r.Release()
	}
}

type fakeBinder struct {
	params []uint64
	names  []string
	types  []purego.Type
}

func (b *fakeBinder) ParameterCount() int { return len(b.params) }
func (b *fakeBinder) Uint64Parameter(i int) uint64 { return b.params[i] }
func (b *fakeBinder) AddResultColumn(n string, t purego.Type) {
	b.names = append(b.names, n)
	b.types = append(b.types, t)
}

type fakeVector struct {
	vals []any
}

func (v *fakeVector) SetNull(row int) { v.vals[row] = nil }
func (v *fakeVector) SetBool(row int, x bool) { v.vals[row] = x }
func (v *fakeVector) SetInt(row int, x int64) { v.vals[row] = x }
func (v *fakeVector) SetUint(row int, x uint64) { v.vals[row] = x }
func (v *fakeVector) SetFloat(row int, x float64) { v.vals[row] = x }
func (v *fakeVector) SetBytes(row int, x []byte) { v.vals[row] = string(x) }

type fakeChunk struct {
	capacity int
	cols     []*fakeVector
}

func (c *fakeChunk) Capacity() int { return c.capacity }
func (c *fakeChunk) ColumnCount() int { return len(c.cols) }
func (c *fakeChunk) Vector(col int) purego.VectorWriter { return c.cols[col] }
