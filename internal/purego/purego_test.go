package purego

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectTable(t *testing.T) {
	tbl := &objectTable{entries: make(map[uintptr]any)}

	a := tbl.put("a")
	b := tbl.put(42)
	assert.NotEqual(t, a, b)
	assert.NotZero(t, a)
	assert.Equal(t, 2, tbl.len())

	v, ok := tbl.get(a)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = tbl.take(b)
	require.True(t, ok)
	assert.Equal(t, 42, v)
	_, ok = tbl.take(b)
	assert.False(t, ok)
	assert.Equal(t, 1, tbl.len())
}

func TestTypeNames(t *testing.T) {
	assert.Equal(t, "int64", TypeBigint.String())
	assert.Equal(t, "varchar", TypeVarchar.String())
	assert.Equal(t, "timestamp with time zone", TypeTimestampTZ.String())
	assert.Equal(t, "invalid", Type(9999).String())

	assert.Equal(t, 1, TypeBoolean.Width())
	assert.Equal(t, 4, TypeDate.Width())
	assert.Equal(t, 8, TypeTimestamp.Width())
	assert.Equal(t, 0, TypeVarchar.Width())
}

func TestCandidates(t *testing.T) {
	t.Setenv(LibDirEnv, "/env/lib")

	got := candidates("/opt/duckdb")
	assert.Equal(t, []string{
		filepath.Join("/opt/duckdb", libraryName()),
		filepath.Join("/env/lib", libraryName()),
		libraryName(),
	}, got)

	// the same directory is not tried twice
	assert.Len(t, candidates("/env/lib"), 2)
}

func TestGuard(t *testing.T) {
	require.NoError(t, guard(func() error { return nil }))

	boom := errors.New("boom")
	require.ErrorIs(t, guard(func() error { return boom }), boom)

	err := guard(func() error { panic("bad scan") })
	require.EqualError(t, err, "panic in table function: bad scan")
}

func TestTimeConversions(t *testing.T) {
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), duckdbDateToTime(19723))
	assert.Equal(t, time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC), duckdbDateToTime(-1))

	tod := duckdbTimeToTime(3_723_000_001)
	assert.Equal(t, "01:02:03.000001", tod.Format("15:04:05.000000"))
	assert.Equal(t, 1970, tod.Year())

	ts := time.Date(2024, 3, 9, 14, 5, 6, 123456000, time.UTC)
	micros := timeToDuckDBTimestamp(ts)
	assert.Equal(t, int64(1709993106123456), micros)
	assert.Equal(t, ts, duckdbTimestampToTime(micros))

	// other zones are stored as the same instant
	local := ts.In(time.FixedZone("UTC+2", 2*60*60))
	assert.Equal(t, micros, timeToDuckDBTimestamp(local))
	assert.Equal(t, time.UTC, duckdbTimestampToTime(micros).Location())
}
