package column

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	s := openTestStore(t)

	id0, err := s.Append("foo", 100, 300)
	require.NoError(t, err)
	require.Equal(t, uint64(0), id0)

	id1, err := s.Append("bar", 200, 400)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id1)

	require.Equal(t, uint64(2), s.RowCount())
}

func TestFetchRoundTrip(t *testing.T) {
	s := openTestStore(t)

	id, err := s.Append("foo", 100, 400)
	require.NoError(t, err)

	row, err := s.Fetch(id)
	require.NoError(t, err)
	require.Equal(t, Row{ID: 0, Name: "foo", StartNs: 100, DeltaNs: 400}, row)
}

func TestFetchOutOfRange(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Append("foo", 0, 1)
	require.NoError(t, err)

	_, err = s.Fetch(1)
	require.True(t, errors.Is(err, ErrOutOfRange))
}

func TestColumnAlignmentAfterManyAppends(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 1000; i++ {
		_, err := s.Append("bulk", int64(i), int64(i*2))
		require.NoError(t, err)
	}

	require.NoError(t, s.Sync())

	idRows, err := s.id.rowCount()
	require.NoError(t, err)
	nameRows, err := s.name.rowCount()
	require.NoError(t, err)
	startRows, err := s.start.rowCount()
	require.NoError(t, err)
	deltaRows, err := s.delta.rowCount()
	require.NoError(t, err)

	require.Equal(t, uint64(1000), idRows)
	require.Equal(t, idRows, nameRows)
	require.Equal(t, idRows, startRows)
	require.Equal(t, idRows, deltaRows)
	require.Equal(t, uint64(1000), s.RowCount())
}

func TestFetchAllIsRestartable(t *testing.T) {
	s := openTestStore(t)

	names := []string{"a", "b", "c"}
	for _, n := range names {
		_, err := s.Append(n, 0, 0)
		require.NoError(t, err)
	}

	for pass := 0; pass < 2; pass++ {
		var got []string
		err := s.FetchAll(func(r Row) error {
			got = append(got, r.Name)
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, names, got)
	}
}

func TestNegativeDeltaStoredVerbatim(t *testing.T) {
	s := openTestStore(t)

	id, err := s.Append("clock-glitch", 1000, -500)
	require.NoError(t, err)

	row, err := s.Fetch(id)
	require.NoError(t, err)
	require.Equal(t, int64(-500), row.DeltaNs)
}

func TestInvalidNameRejected(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Append(string(make([]byte, MaxNameBytes+1)), 0, 0)
	require.True(t, errors.Is(err, ErrInvalidName))
}

// TestRecoveryTruncatesToMinimum simulates an unclean shutdown by
// truncating delta.col to 900 rows after appending 1000 rows, then
// reopening: recovery should truncate every column down to the common
// row count rather than surface the torn write as an error.
func TestRecoveryTruncatesToMinimum(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Options{})
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		_, err := s.Append("jake", int64(i), int64(i))
		require.NoError(t, err)
	}
	require.NoError(t, s.Sync())
	require.NoError(t, s.Close())

	// Truncate delta.col to 900 records (8 bytes each), simulating a
	// torn write that lost the last 100 rows on that column only.
	deltaPath := filepath.Join(dir, "delta.col")
	require.NoError(t, os.Truncate(deltaPath, 900*8))

	reopened, err := Open(dir, Options{})
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, uint64(900), reopened.RowCount())

	for i := uint64(0); i < 900; i++ {
		row, err := reopened.Fetch(i)
		require.NoError(t, err)
		require.Equal(t, int64(i), row.StartNs)
	}

	_, err = reopened.Fetch(900)
	require.True(t, errors.Is(err, ErrOutOfRange))
}

// TestReopenThenAppendPreservesExistingRows guards against a file
// opened without O_APPEND landing its first post-reopen write at
// offset 0 and clobbering row 0: it writes rows, closes, reopens, and
// appends more, then verifies every row — old and new — reads back
// intact.
func TestReopenThenAppendPreservesExistingRows(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Options{})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := s.Append("before-reopen", int64(i), int64(i*10))
		require.NoError(t, err)
	}
	require.NoError(t, s.Sync())
	require.NoError(t, s.Close())

	reopened, err := Open(dir, Options{})
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, uint64(10), reopened.RowCount())

	for i := 0; i < 5; i++ {
		id, err := reopened.Append("after-reopen", int64(100+i), int64(i))
		require.NoError(t, err)
		require.Equal(t, uint64(10+i), id)
	}
	require.Equal(t, uint64(15), reopened.RowCount())

	for i := uint64(0); i < 10; i++ {
		row, err := reopened.Fetch(i)
		require.NoError(t, err)
		require.Equal(t, "before-reopen", row.Name)
		require.Equal(t, int64(i), row.StartNs)
		require.Equal(t, int64(i*10), row.DeltaNs)
	}
	for i := uint64(0); i < 5; i++ {
		row, err := reopened.Fetch(10 + i)
		require.NoError(t, err)
		require.Equal(t, "after-reopen", row.Name)
		require.Equal(t, int64(100+i), row.StartNs)
	}
}

func TestScanNamesAndDeltaAt(t *testing.T) {
	s := openTestStore(t)

	_, _ = s.Append("foo", 0, 10)
	_, _ = s.Append("bar", 10, 20)
	_, _ = s.Append("foo", 30, 40)

	var matches []uint64
	err := s.ScanNames(func(i uint64, name string) error {
		if name == "foo" {
			matches = append(matches, i)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 2}, matches)

	var sum int64
	err = s.ScanDeltaAt(matches, func(i uint64, delta int64) error {
		sum += delta
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(50), sum)
}
