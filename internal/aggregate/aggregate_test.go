package aggregate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeRoggenbuck/kronicler/internal/column"
)

func openStore(t *testing.T) *column.Store {
	t.Helper()
	s, err := column.Open(t.TempDir(), column.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAverageOfSingleRowEqualsItsDelta(t *testing.T) {
	s := openStore(t)

	id, err := s.Append("foo", 100, 300)
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)

	row, err := s.Fetch(0)
	require.NoError(t, err)
	require.Equal(t, int64(100), row.StartNs)
	require.Equal(t, int64(300), row.DeltaNs)

	avg, err := Average(s, "foo")
	require.NoError(t, err)
	require.Equal(t, 300.0, avg)
}

func TestContainsNameAndAverageAreScopedPerFunction(t *testing.T) {
	s := openStore(t)

	_, err := s.Append("foo", 0, 10)
	require.NoError(t, err)
	_, err = s.Append("bar", 10, 20)
	require.NoError(t, err)
	_, err = s.Append("foo", 30, 40)
	require.NoError(t, err)

	ok, err := ContainsName(s, "foo")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ContainsName(s, "baz")
	require.NoError(t, err)
	require.False(t, ok)

	avg, err := Average(s, "foo")
	require.NoError(t, err)
	require.Equal(t, 25.0, avg)

	avg, err = Average(s, "bar")
	require.NoError(t, err)
	require.Equal(t, 20.0, avg)
}

func TestAverageOfAbsentNameIsZero(t *testing.T) {
	s := openStore(t)
	_, err := s.Append("foo", 0, 10)
	require.NoError(t, err)

	avg, err := Average(s, "nonexistent")
	require.NoError(t, err)
	require.Equal(t, 0.0, avg)
}

// TestAverageOverManyRowsMatchesFloatingSum keeps the row count small
// enough for a fast suite, so the widen-every-1<<20 accumulator path is
// not reached here (nor in TestAverageOfLargeDeltas).
func TestAverageOverManyRowsMatchesFloatingSum(t *testing.T) {
	s := openStore(t)

	const n = 20000
	var sum int64
	for i := 0; i < n; i++ {
		delta := int64(100 + i%101) // uniform-ish in [100, 200]
		sum += delta
		_, err := s.Append("jake", 0, delta)
		require.NoError(t, err)
	}

	avg, err := Average(s, "jake")
	require.NoError(t, err)
	require.InDelta(t, float64(sum)/float64(n), avg, 1e-9)
}

func TestAverageOfLargeDeltas(t *testing.T) {
	s := openStore(t)

	const n = 5
	const perRow = int64(1) << 50 // large deltas whose 5-row sum still fits in int64; far below the 1<<20-addition widen boundary
	var sum int64
	for i := 0; i < n; i++ {
		sum += perRow
		_, err := s.Append("big", 0, perRow)
		require.NoError(t, err)
	}

	avg, err := Average(s, "big")
	require.NoError(t, err)
	require.InDelta(t, float64(sum)/float64(n), avg, float64(1)<<20)
}
