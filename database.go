package kronicler

import (
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/JakeRoggenbuck/kronicler/internal/aggregate"
	"github.com/JakeRoggenbuck/kronicler/internal/capture"
	"github.com/JakeRoggenbuck/kronicler/internal/column"
	"github.com/JakeRoggenbuck/kronicler/internal/obs"
)

// Database is the root handle: it owns the column store, the capture
// pipeline, and the background consumer (if any). One Database per
// process over a given directory is the expected usage; opening the
// same directory from two Database instances in the same process (or
// from two processes) leads to undefined ordering and is the
// embedder's responsibility to avoid.
type Database struct {
	store    *column.Store
	pipeline *capture.Pipeline
	cfg      Config
}

// New opens or creates the data directory named by cfg.Directory,
// reconstructs next_id as the common column length, and starts the
// capture pipeline (and its background consumer, in async mode).
// Re-constructing a Database over the same directory reopens and
// recovers it; concurrent Databases over one directory are undefined.
func New(cfg Config) (*Database, error) {
	cfg = cfg.resolveEnv()
	if cfg.Directory == "" {
		cfg.Directory = DefaultDirectory
	}

	logger := cfg.Logger
	store, err := column.Open(cfg.Directory, column.Options{
		FsyncEvery: cfg.FsyncEvery,
		Logger:     &logger,
	})
	if err != nil {
		return nil, wrapErr("open", err)
	}

	pipeline := capture.New(store, capture.Config{
		SyncConsume:   cfg.SyncConsume,
		QueueCapacity: cfg.QueueCapacity,
		Logger:        logger,
	})

	// Prime the row-count gauge from the recovered row count, not just
	// from subsequent appends, so a process that only reads (a
	// read-only metrics server, kroniclerctl serve-metrics) reports the
	// store's real size instead of 0.
	obs.RowsTotal.Set(float64(store.RowCount()))

	return &Database{store: store, pipeline: pipeline, cfg: cfg}, nil
}

// Capture records one function/endpoint invocation. args is accepted
// for source compatibility with the argument-capture prototype this
// was ported from, but its contents are never persisted — no column
// stores call arguments.
func (db *Database) Capture(name string, args []any, startNs, endNs int64) error {
	return wrapErr("capture", db.pipeline.Capture(name, startNs, endNs))
}

// Fetch reconstructs the row assigned id, or ErrOutOfRange if
// id >= row count.
func (db *Database) Fetch(id uint64) (Row, error) {
	r, err := db.store.Fetch(id)
	if err != nil {
		return Row{}, translateStoreErr("fetch", err)
	}
	return Row{ID: r.ID, Name: r.Name, StartNs: r.StartNs, DeltaNs: r.DeltaNs}, nil
}

// FetchAll invokes fn with every row in id order. The scan is
// restartable: calling FetchAll again re-reads from row 0.
func (db *Database) FetchAll(fn func(Row) error) error {
	return wrapErr("fetch_all", db.store.FetchAll(func(r column.Row) error {
		return fn(Row{ID: r.ID, Name: r.Name, StartNs: r.StartNs, DeltaNs: r.DeltaNs})
	}))
}

// Logs is an alias for FetchAll, named for the dashboards that consume
// it.
func (db *Database) Logs(fn func(Row) error) error {
	return db.FetchAll(fn)
}

// ContainsName reports whether any row's function_name equals name.
func (db *Database) ContainsName(name string) (bool, error) {
	ok, err := aggregate.ContainsName(db.store, name)
	return ok, wrapErr("contains_name", err)
}

// Average returns the mean delta_ns of rows whose function_name equals
// name, or 0.0 if the name does not occur.
func (db *Database) Average(name string) (float64, error) {
	avg, err := aggregate.Average(db.store, name)
	return avg, wrapErr("average", err)
}

// RowCount returns the number of durably-visible rows.
func (db *Database) RowCount() uint64 { return db.store.RowCount() }

// MetricsHandler returns the Prometheus scrape handler for this
// process's capture metrics (kronicler_rows_total,
// kronicler_captures_total, kronicler_queue_overflow_total,
// kronicler_append_duration_seconds, and friends).
func (db *Database) MetricsHandler() http.Handler { return obs.Handler() }

// Logger returns the structured logger this Database was configured
// with (a no-op logger by default), for adapters that need to log
// their own lifecycle events consistently with the Database's own.
func (db *Database) Logger() zerolog.Logger { return db.cfg.Logger }

// Overflow returns the number of async capture events dropped because
// the queue was full.
func (db *Database) Overflow() uint64 { return db.pipeline.Overflow() }

// ErrorCount returns the number of append failures observed by the
// pipeline, sync or async.
func (db *Database) ErrorCount() uint64 { return db.pipeline.ErrorCount() }

// LastError returns the most recent append error the pipeline has
// observed, or nil.
func (db *Database) LastError() error { return db.pipeline.LastError() }

// Flush blocks until every capture enqueued before this call has been
// committed by the background consumer (async mode only; a no-op in
// sync mode, where every Capture has already returned after commit).
func (db *Database) Flush() { db.pipeline.Flush() }

// Close signals the consumer, drains the queue, and fsyncs and closes
// all column files. A Close that races with unawaited async captures
// may lose up to the queue's capacity in most-recent events.
func (db *Database) Close() error {
	if err := db.pipeline.Shutdown(); err != nil {
		return wrapErr("shutdown", err)
	}
	return wrapErr("close", db.store.Close())
}

func translateStoreErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	default:
		return wrapErr(op, err)
	}
}

var (
	singletonMu sync.Mutex
	singleton   *Database
)

// Get returns the process-wide Database singleton, constructing it
// with DefaultConfig (plus KRONICLER_* environment overrides) on first
// call. Every subsequent call returns the same handle; construction is
// idempotent over the process lifetime.
func Get() (*Database, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	if singleton != nil {
		return singleton, nil
	}
	db, err := New(DefaultConfig().resolveEnv())
	if err != nil {
		return nil, err
	}
	singleton = db
	return singleton, nil
}

// resetSingletonForTest is used only by this package's tests to allow
// Get() to be exercised against a fresh temp directory per test.
func resetSingletonForTest() {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton != nil {
		singleton.Close()
	}
	singleton = nil
}
