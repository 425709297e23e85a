package arrowscan

import (
	"errors"
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connerohnesorge/dukdb-stream/internal/purego"
)

func TestFactoryReleasesOnce(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	src := int64Source(t, mem, ints(1))

	f := NewFactory(src.produce, src.release, nil)
	f.Retain()
	assert.EqualValues(t, 2, f.Refs())

	f.Release()
	assert.Equal(t, 0, src.released)
	f.Release()
	assert.Equal(t, 1, src.released)

	// an extra release is logged, not repeated
	f.Release()
	assert.Equal(t, 1, src.released)

	_, err := CreateStream(f.Handle(), ScanParameters{})
	require.ErrorIs(t, err, ErrUnknownHandle)
}

func TestCreateStreamIsFreshEachCall(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	src := int64Source(t, mem, ints(1, 2))
	f := NewFactory(src.produce, src.release, nil)
	defer f.Release()

	params := ScanParameters{ProjectedColumns: []string{"x"}, Filters: []string{"x > 1"}}
	for i := 0; i < 2; i++ {
		s, err := CreateStream(f.Handle(), params)
		require.NoError(t, err)
		rec, err := s.current()
		require.NoError(t, err)
		assert.EqualValues(t, 2, rec.NumRows(), "filters are not applied")
		s.Release()
	}
	assert.Equal(t, 2, src.produced)
	assert.Equal(t, 2, src.closed)
}

func TestGetSchemaReleasesItsStream(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	src := int64Source(t, mem, ints(1))
	f := NewFactory(src.produce, src.release, nil)
	defer f.Release()

	schema, err := GetSchema(f.Handle())
	require.NoError(t, err)
	assert.True(t, schema.Equal(src.schema))
	assert.Equal(t, 1, src.produced)
	assert.Equal(t, 1, src.closed)
}

func TestProducerError(t *testing.T) {
	boom := errors.New("boom")
	f := NewFactory(func(any) (array.RecordReader, error) { return nil, boom }, nil, nil)
	defer f.Release()

	_, err := GetSchema(f.Handle())
	require.ErrorIs(t, err, boom)

	nilReader := NewFactory(func(any) (array.RecordReader, error) { return nil, nil }, nil, nil)
	defer nilReader.Release()
	_, err = CreateStream(nilReader.Handle(), ScanParameters{})
	require.Error(t, err)
}

func TestScanAcrossBatches(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	src := int64Source(t, mem, ints(1, 2), []*int64{ints(3)[0], nil, ints(5)[0]}, nil, ints(6))
	f := NewFactory(src.produce, src.release, nil)

	sizes, rows := scanAll(t, f, 3)
	assert.Equal(t, []int{3, 3, 0}, sizes)
	assert.Equal(t, [][]any{{int64(1)}, {int64(2)}, {int64(3)}, {nil}, {int64(5)}, {int64(6)}}, rows)

	// one stream for the schema, one for the scan, both released
	assert.Equal(t, 2, src.produced)
	assert.Equal(t, 2, src.closed)

	f.Release()
	assert.Equal(t, 1, src.released)
}

func TestScanBindDeclaresColumns(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "flag", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "n", Type: arrow.PrimitiveTypes.Uint16},
		{Name: "score", Type: arrow.PrimitiveTypes.Float32},
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "day", Type: arrow.FixedWidthTypes.Date32},
		{Name: "at", Type: &arrow.TimestampType{Unit: arrow.Millisecond}},
		{Name: "at_tz", Type: &arrow.TimestampType{Unit: arrow.Second, TimeZone: "UTC"}},
		{Name: "clock", Type: arrow.FixedWidthTypes.Time64ns},
	}, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.BooleanBuilder).Append(true)
	b.Field(1).(*array.Uint16Builder).Append(7)
	b.Field(2).(*array.Float32Builder).Append(1.5)
	b.Field(3).(*array.StringBuilder).Append("ada")
	b.Field(4).(*array.Date32Builder).Append(arrow.Date32(19000))
	b.Field(5).(*array.TimestampBuilder).Append(arrow.Timestamp(1_500))
	b.Field(6).(*array.TimestampBuilder).Append(arrow.Timestamp(2))
	b.Field(7).(*array.Time64Builder).Append(arrow.Time64(3_000))
	rec := b.NewRecord()
	defer rec.Release()

	f := NewFactory(func(any) (array.RecordReader, error) {
		return array.NewRecordReader(schema, []arrow.Record{rec})
	}, nil, nil)
	defer f.Release()

	args := Args(f)
	binder := &fakeBinder{params: args[:]}
	bd, err := bind(binder)
	require.NoError(t, err)
	assert.Equal(t, []string{"flag", "n", "score", "name", "day", "at", "at_tz", "clock"}, binder.names)
	assert.Equal(t, []purego.Type{
		purego.TypeBoolean, purego.TypeUSmallint, purego.TypeFloat, purego.TypeVarchar,
		purego.TypeDate, purego.TypeTimestamp, purego.TypeTimestampTZ, purego.TypeTime,
	}, binder.types)

	st, err := initScan(bd)
	require.NoError(t, err)
	chunk := newFakeChunk(4, len(binder.types))
	n, err := scan(st, chunk)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	st.(*scanState).Release()

	got := make([]any, len(chunk.cols))
	for i, c := range chunk.cols {
		got[i] = c.vals[0]
	}
	assert.Equal(t, []any{true, uint64(7), float64(1.5), "ada", int64(19000), int64(1_500_000), int64(2_000_000), int64(3)}, got)
}

func TestScanHoldsFactory(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	src := int64Source(t, mem, ints(1, 2, 3))
	f := NewFactory(src.produce, src.release, nil)

	args := Args(f)
	bd, err := bind(&fakeBinder{params: args[:]})
	require.NoError(t, err)
	st, err := initScan(bd)
	require.NoError(t, err)

	// the registrant lets go while the scan is still running
	f.Release()
	assert.Equal(t, 0, src.released)

	n, err := scan(st, newFakeChunk(8, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	st.(*scanState).Release()
	st.(*scanState).Release()
	assert.Equal(t, 1, src.released)

	// new scans against the released factory fail cleanly
	_, err = initScan(bd)
	require.ErrorIs(t, err, ErrUnknownHandle)
}

func TestBindErrors(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	src := int64Source(t, mem, ints(1))
	f := NewFactory(src.produce, src.release, nil)
	defer f.Release()
	args := Args(f)

	_, err := bind(&fakeBinder{params: args[:2]})
	require.Error(t, err)

	_, err = bind(&fakeBinder{params: []uint64{args[0], args[2], args[1]}})
	require.Error(t, err, "trampolines swapped")

	_, err = bind(&fakeBinder{params: []uint64{1 << 60, args[1], args[2]}})
	require.ErrorIs(t, err, ErrUnknownHandle)

	listSchema := arrow.NewSchema([]arrow.Field{{Name: "xs", Type: arrow.ListOf(arrow.PrimitiveTypes.Int32)}}, nil)
	lists := NewFactory(func(any) (array.RecordReader, error) {
		return array.NewRecordReader(listSchema, nil)
	}, nil, nil)
	defer lists.Release()
	largs := Args(lists)
	_, err = bind(&fakeBinder{params: largs[:]})
	require.ErrorContains(t, err, `column "xs"`)
}

func TestToMicros(t *testing.T) {
	tests := []struct {
		v    int64
		unit arrow.TimeUnit
		want int64
	}{
		{2, arrow.Second, 2_000_000},
		{3, arrow.Millisecond, 3_000},
		{4, arrow.Microsecond, 4},
		{5_999, arrow.Nanosecond, 5},
		{-1, arrow.Nanosecond, -1},
		{-9_223_372_036_854, arrow.Second, -9_223_372_036_854_000_000},
	}
	for _, tt := range tests {
		got, err := toMicros(tt.v, tt.unit)
		require.NoError(t, err, "%d %s", tt.v, tt.unit)
		assert.Equal(t, tt.want, got, "%d %s", tt.v, tt.unit)
	}

	_, err := toMicros(math.MaxInt64/1_000_000+1, arrow.Second)
	require.ErrorContains(t, err, "out of the microsecond range")
	_, err = toMicros(math.MinInt64/1_000, arrow.Millisecond)
	require.NoError(t, err)
	_, err = toMicros(math.MinInt64/1_000-1, arrow.Millisecond)
	require.Error(t, err)

	assert.EqualValues(t, -1, date64ToDays(-1))
	assert.EqualValues(t, 1, date64ToDays(86_400_000))
}

func TestScanRejectsTimestampOverflow(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	schema := arrow.NewSchema([]arrow.Field{{Name: "at", Type: arrow.FixedWidthTypes.Timestamp_s}}, nil)
	b := array.NewRecordBuilder(mem, schema)
	b.Field(0).(*array.TimestampBuilder).AppendValues([]arrow.Timestamp{1, math.MaxInt64 / 1_000}, nil)
	rec := b.NewRecord()
	b.Release()
	defer rec.Release()

	src := &source{schema: schema, recs: []arrow.Record{rec}}
	f := NewFactory(src.produce, src.release, nil)
	defer f.Release()

	args := Args(f)
	binder := &fakeBinder{params: args[:]}
	bd, err := bind(binder)
	require.NoError(t, err)
	st, err := initScan(bd)
	require.NoError(t, err)
	defer st.(*scanState).Release()

	_, err = scan(st, newFakeChunk(8, 1))
	require.ErrorContains(t, err, `column "at"`)
	require.ErrorContains(t, err, "out of the microsecond range")
}

func BenchmarkScan(b *testing.B) {
	batch := make([]*int64, 4096)
	for i := range batch {
		v := int64(i)
		batch[i] = &v
	}
	src := int64Source(b, memory.NewGoAllocator(), batch, batch, batch)
	f := NewFactory(src.produce, src.release, nil)
	defer f.Release()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, rows := scanAll(b, f, 2048)
		if len(rows) != 3*4096 {
			b.Fatalf("scanned %d rows", len(rows))
		}
	}
}
