package capture

import (
	"sync"
	"testing"
	"time"

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

func TestSyncCaptureIsVisibleImmediately(t *testing.T) {
	store := openStore(t)
	p := New(store, Config{SyncConsume: true})

	require.NoError(t, p.Capture("foo", 100, 400))

	row, err := store.Fetch(0)
	require.NoError(t, err)
	require.Equal(t, int64(300), row.DeltaNs)
}

func TestAsyncCaptureIsVisibleAfterFlush(t *testing.T) {
	store := openStore(t)
	p := New(store, Config{SyncConsume: false, QueueCapacity: 8})
	defer p.Shutdown()

	require.NoError(t, p.Capture("foo", 100, 400))
	p.Flush()

	require.Equal(t, uint64(1), store.RowCount())
	row, err := store.Fetch(0)
	require.NoError(t, err)
	require.Equal(t, int64(300), row.DeltaNs)
}

func TestAsyncOverflowDropsNewestAndCountsOverflow(t *testing.T) {
	store := openStore(t)
	p := New(store, Config{SyncConsume: false, QueueCapacity: 1})
	defer p.Shutdown()

	// The blocker goroutine below does not hold up the consumer; the
	// overflow relies on 1000 back-to-back captures outpacing the
	// consumer's file appends through a one-slot queue.
	var wg sync.WaitGroup
	wg.Add(1)
	blocker := make(chan struct{})
	go func() {
		defer wg.Done()
		<-blocker
	}()

	for i := 0; i < 1000; i++ {
		require.NoError(t, p.Capture("spam", 0, 1))
	}
	close(blocker)
	wg.Wait()

	p.Flush()
	require.Greater(t, p.Overflow(), uint64(0))
	require.Equal(t, p.Overflow()+store.RowCount(), uint64(1000))
}

func TestShutdownDrainsQueueBeforeExiting(t *testing.T) {
	store := openStore(t)
	p := New(store, Config{SyncConsume: false, QueueCapacity: 1000})

	for i := 0; i < 500; i++ {
		require.NoError(t, p.Capture("drained", 0, int64(i)))
	}
	require.NoError(t, p.Shutdown())

	require.Equal(t, uint64(500), store.RowCount())
}

// TestConcurrentProducersDoNotBlock checks that with a small queue and
// many producers, no producer observes a long stall, and
// overflow + row_count equals the total number of captures produced.
func TestConcurrentProducersDoNotBlock(t *testing.T) {
	store := openStore(t)
	p := New(store, Config{SyncConsume: false, QueueCapacity: 8})
	defer p.Shutdown()

	const producers = 20
	const perProducer = 10000

	var wg sync.WaitGroup
	wg.Add(producers)
	for g := 0; g < producers; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				start := time.Now()
				require.NoError(t, p.Capture("load", 0, 1))
				require.Less(t, time.Since(start), 250*time.Millisecond)
			}
		}()
	}
	wg.Wait()
	p.Flush()

	total := p.Overflow() + store.RowCount()
	require.Equal(t, uint64(producers*perProducer), total)
}

func TestMultipleProducersSyncModeSerializeSafely(t *testing.T) {
	store := openStore(t)
	p := New(store, Config{SyncConsume: true})

	const producers = 10
	const perProducer = 500

	var wg sync.WaitGroup
	wg.Add(producers)
	for g := 0; g < producers; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				require.NoError(t, p.Capture("sync-load", 0, 1))
			}
		}()
	}
	wg.Wait()

	require.Equal(t, uint64(producers*perProducer), store.RowCount())
}
