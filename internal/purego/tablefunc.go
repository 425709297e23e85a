package purego

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/purego"
)

// Binder gives a table function access to its call arguments and lets it
// declare the result columns
type Binder interface {
	ParameterCount() int
	Uint64Parameter(index int) uint64
	AddResultColumn(name string, t Type)
}

// ChunkWriter is the output chunk a table function fills on each scan call
type ChunkWriter interface {
	Capacity() int
	ColumnCount() int
	Vector(col int) VectorWriter
}

// VectorWriter writes values into one output column. SetInt and SetUint
// narrow to the column's physical width.
type VectorWriter interface {
	SetNull(row int)
	SetBool(row int, v bool)
	SetInt(row int, v int64)
	SetUint(row int, v uint64)
	SetFloat(row int, v float64)
	SetBytes(row int, v []byte)
}

// Releaser is implemented by bind and init data that hold resources. The
// engine decides when they are dropped.
type Releaser interface {
	Release()
}

// TableFunc describes a table function implemented in Go.
//
// Bind runs once per query that references the function and returns bind
// data. Init runs once per scan with that bind data and returns the scan
// state. Scan is called repeatedly and returns how many rows it wrote; zero
// ends the scan.
type TableFunc struct {
	Name       string
	Parameters []Type
	Bind       func(b Binder) (any, error)
	Init       func(bindData any) (any, error)
	Scan       func(initData any, out ChunkWriter) (int, error)
}

var (
	callbacksOnce  sync.Once
	bindCallback   uintptr
	initCallback   uintptr
	scanCallback   uintptr
	deleteCallback uintptr

	// current is the library the callbacks dispatch through
	current atomic.Pointer[DuckDB]
)

func setupCallbacks() {
	bindCallback = purego.NewCallback(bindTrampoline)
	initCallback = purego.NewCallback(initTrampoline)
	scanCallback = purego.NewCallback(scanTrampoline)
	deleteCallback = purego.NewCallback(deleteTrampoline)
}

type tableFuncEntry struct {
	fn TableFunc
}

type bindState struct {
	fn    *TableFunc
	data  any
	types []Type
}

func (s *bindState) Release() {
	if r, ok := s.data.(Releaser); ok {
		r.Release()
	}
}

type initState struct {
	bind *bindState
	data any
}

func (s *initState) Release() {
	if r, ok := s.data.(Releaser); ok {
		r.Release()
	}
}

// RegisterTableFunction registers fn with the database behind conn. The
// function stays registered until the database is closed.
func (d *DuckDB) RegisterTableFunction(conn Connection, fn TableFunc) error {
	callbacksOnce.Do(setupCallbacks)
	current.Store(d)

	tf := d.duckdbCreateTableFunction()
	defer d.duckdbDestroyTableFunction(&tf)

	d.duckdbTableFunctionSetName(tf, cString(fn.Name))
	for _, p := range fn.Parameters {
		lt := d.duckdbCreateLogicalType(uint32(p))
		d.duckdbTableFunctionAddParameter(tf, lt)
		d.duckdbDestroyLogicalType(&lt)
	}

	// the engine owns the entry from here and drops it through deleteCallback
	id := objects.put(&tableFuncEntry{fn: fn})
	d.duckdbTableFunctionSetExtraInfo(tf, id, deleteCallback)
	d.duckdbTableFunctionSetBind(tf, bindCallback)
	d.duckdbTableFunctionSetInit(tf, initCallback)
	d.duckdbTableFunctionSetFunction(tf, scanCallback)
	d.duckdbTableFunctionSupportsProjection(tf, false)

	if d.duckdbRegisterTableFunction(conn, tf) != StateSuccess {
		return &Error{Op: "register table function", Message: fmt.Sprintf("could not register %s", fn.Name)}
	}

	log.Printf("[DEBUG] registered table function %s", fn.Name)
	return nil
}

// guard runs f and turns a panic into an error so it never unwinds into C
func guard(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in table function: %v", r)
		}
	}()
	return f()
}

func bindTrampoline(info uintptr) {
	d := current.Load()
	bi := BindInfo(info)

	v, _ := objects.get(d.duckdbBindGetExtraInfo(bi))
	entry, ok := v.(*tableFuncEntry)
	if !ok {
		d.duckdbBindSetError(bi, cString("table function is no longer registered"))
		return
	}

	b := &binder{d: d, info: bi}
	var data any
	err := guard(func() (err error) {
		data, err = entry.fn.Bind(b)
		return err
	})
	if err != nil {
		d.duckdbBindSetError(bi, cString(err.Error()))
		return
	}

	id := objects.put(&bindState{fn: &entry.fn, data: data, types: b.types})
	d.duckdbBindSetBindData(bi, id, deleteCallback)
}

func initTrampoline(info uintptr) {
	d := current.Load()
	ii := InitInfo(info)

	v, _ := objects.get(d.duckdbInitGetBindData(ii))
	bs, ok := v.(*bindState)
	if !ok {
		d.duckdbInitSetError(ii, cString("table function bind data is missing"))
		return
	}

	var data any
	err := guard(func() (err error) {
		data, err = bs.fn.Init(bs.data)
		return err
	})
	if err != nil {
		d.duckdbInitSetError(ii, cString(err.Error()))
		return
	}

	id := objects.put(&initState{bind: bs, data: data})
	d.duckdbInitSetInitData(ii, id, deleteCallback)
}

func scanTrampoline(info uintptr, output uintptr) {
	d := current.Load()
	fi := FunctionInfo(info)
	chunk := DataChunk(output)

	v, _ := objects.get(d.duckdbFunctionGetInitData(fi))
	is, ok := v.(*initState)
	if !ok {
		d.duckdbFunctionSetError(fi, cString("table function scan state is missing"))
		d.duckdbDataChunkSetSize(chunk, 0)
		return
	}

	out := newChunkWriter(d, chunk, is.bind.types)
	var n int
	err := guard(func() (err error) {
		n, err = is.bind.fn.Scan(is.data, out)
		return err
	})
	if err != nil {
		d.duckdbFunctionSetError(fi, cString(err.Error()))
		n = 0
	}
	d.duckdbDataChunkSetSize(chunk, uint64(n))
}

func deleteTrampoline(data uintptr) {
	v, ok := objects.take(data)
	if !ok {
		return
	}
	if r, ok := v.(Releaser); ok {
		_ = guard(func() error {
			r.Release()
			return nil
		})
	}
}

// binder implements Binder over a duckdb_bind_info
type binder struct {
	d     *DuckDB
	info  BindInfo
	types []Type
}

func (b *binder) ParameterCount() int {
	return int(b.d.duckdbBindGetParameterCount(b.info))
}

func (b *binder) Uint64Parameter(index int) uint64 {
	v := b.d.duckdbBindGetParameter(b.info, uint64(index))
	defer b.d.duckdbDestroyValue(&v)
	return b.d.duckdbGetUint64(v)
}

func (b *binder) AddResultColumn(name string, t Type) {
	lt := b.d.duckdbCreateLogicalType(uint32(t))
	b.d.duckdbBindAddResultColumn(b.info, cString(name), lt)
	b.d.duckdbDestroyLogicalType(&lt)
	b.types = append(b.types, t)
}
