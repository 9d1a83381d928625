package kronicler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(DefaultConfig().WithDirectory(t.TempDir()).WithSyncConsume(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCaptureFetchRoundTrip(t *testing.T) {
	db := openTestDB(t)

	err := db.Capture("foo", []any{1, "x"}, 100, 400)
	require.NoError(t, err)

	row, err := db.Fetch(0)
	require.NoError(t, err)
	require.Equal(t, "foo", row.Name)
	require.Equal(t, int64(100), row.StartNs)
	require.Equal(t, int64(300), row.DeltaNs)
}

func TestFetchOutOfRangeReturnsSentinel(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Fetch(0)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestContainsNameAndAverage(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Capture("foo", nil, 0, 10))
	require.NoError(t, db.Capture("bar", nil, 0, 20))
	require.NoError(t, db.Capture("foo", nil, 0, 30))

	ok, err := db.ContainsName("foo")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = db.ContainsName("baz")
	require.NoError(t, err)
	require.False(t, ok)

	avg, err := db.Average("foo")
	require.NoError(t, err)
	require.Equal(t, 20.0, avg)
}

// TestConcurrentCapturesAcrossManyNamesStayConsistent runs 20 goroutines
// each capturing 10,000 events under distinct names T0..T19; RowCount
// must land on 200,000 and each name's average must match its
// producer's own local mean.
func TestConcurrentCapturesAcrossManyNamesStayConsistent(t *testing.T) {
	db, err := New(DefaultConfig().WithDirectory(t.TempDir()).WithSyncConsume(false).WithQueueCapacity(200000))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	const producers = 20
	const perProducer = 10000

	var wg sync.WaitGroup
	localSums := make([]int64, producers)

	for k := 0; k < producers; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			name := producerName(k)
			var sum int64
			for i := 0; i < perProducer; i++ {
				delta := int64(100 + i%50)
				sum += delta
				require.NoError(t, db.Capture(name, nil, 0, delta))
			}
			localSums[k] = sum
		}(k)
	}
	wg.Wait()
	db.Flush()

	require.Equal(t, uint64(producers*perProducer), db.RowCount())

	for k := 0; k < producers; k++ {
		avg, err := db.Average(producerName(k))
		require.NoError(t, err)
		want := float64(localSums[k]) / float64(perProducer)
		require.InDelta(t, want, avg, 1e-9)
	}
}

func producerName(k int) string {
	const letters = "0123456789"
	if k < 10 {
		return "T" + string(letters[k])
	}
	return "T1" + string(letters[k-10])
}

func TestGetSingletonIsIdempotent(t *testing.T) {
	t.Cleanup(resetSingletonForTest)
	t.Setenv("KRONICLER_DIRECTORY", t.TempDir())
	t.Setenv("KRONICLER_SYNC", "true")

	a, err := Get()
	require.NoError(t, err)
	b, err := Get()
	require.NoError(t, err)
	require.Same(t, a, b)
}
