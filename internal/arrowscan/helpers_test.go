package arrowscan

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/connerohnesorge/dukdb-stream/internal/purego"
)

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

func newFakeChunk(capacity, ncols int) *fakeChunk {
	c := &fakeChunk{capacity: capacity}
	for i := 0; i < ncols; i++ {
		c.cols = append(c.cols, &fakeVector{vals: make([]any, capacity)})
	}
	return c
}

func (c *fakeChunk) Capacity() int { return c.capacity }
func (c *fakeChunk) ColumnCount() int { return len(c.cols) }
func (c *fakeChunk) Vector(col int) purego.VectorWriter { return c.cols[col] }

// source is a producer over a fixed set of records that counts how often it
// is asked for a stream and how often those streams are released
type source struct {
	schema   *arrow.Schema
	recs     []arrow.Record
	produced int
	closed   int
	released int
}

type countingReader struct {
	array.RecordReader
	src  *source
	done bool
}

func (r *countingReader) Release() {
	if !r.done {
		r.done = true
		r.src.closed++
	}
	r.RecordReader.Release()
}

func (s *source) produce(state any) (array.RecordReader, error) {
	s.produced++
	rdr, err := array.NewRecordReader(s.schema, s.recs)
	if err != nil {
		return nil, err
	}
	return &countingReader{RecordReader: rdr, src: s}, nil
}

func (s *source) release(state any) {
	s.released++
}

// int64Source builds one int64 column "x" with a record per batch. Nil
// entries in a batch become nulls.
func int64Source(t testing.TB, mem memory.Allocator, batches ...[]*int64) *source {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{{Name: "x", Type: arrow.PrimitiveTypes.Int64, Nullable: true}}, nil)
	src := &source{schema: schema}
	for _, batch := range batches {
		b := array.NewRecordBuilder(mem, schema)
		ib := b.Field(0).(*array.Int64Builder)
		for _, v := range batch {
			if v == nil {
				ib.AppendNull()
				continue
			}
			ib.Append(*v)
		}
		src.recs = append(src.recs, b.NewRecord())
		b.Release()
	}
	t.Cleanup(func() {
		for _, r := range src.recs {
			r.Release()
		}
	})
	return src
}

func ints(vs ...int64) []*int64 {
	out := make([]*int64, len(vs))
	for i := range vs {
		out[i] = &vs[i]
	}
	return out
}

// scanAll runs bind, init and scan the way the engine would and returns the
// chunk sizes and every row produced
func scanAll(t testing.TB, f *Factory, capacity int) ([]int, [][]any) {
	t.Helper()
	args := Args(f)
	b := &fakeBinder{params: args[:]}
	bd, err := bind(b)
	require.NoError(t, err)

	st, err := initScan(bd)
	require.NoError(t, err)
	defer st.(*scanState).Release()

	var sizes []int
	var rows [][]any
	for {
		chunk := newFakeChunk(capacity, len(b.types))
		n, err := scan(st, chunk)
		require.NoError(t, err)
		sizes = append(sizes, n)
		if n == 0 {
			break
		}
		for r := 0; r < n; r++ {
			row := make([]any, len(chunk.cols))
			for c, col := range chunk.cols {
				row[c] = col.vals[r]
			}
			rows = append(rows, row)
		}
	}
	return sizes, rows
}
