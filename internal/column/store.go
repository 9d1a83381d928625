package column

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrOutOfRange is returned by Fetch when id >= row count.
var ErrOutOfRange = errors.New("column: id out of range")

// Store owns the four parallel column files that make up the capture
// database. All mutation goes through Append, which is guarded by a
// single writer lock; reads take the (shared) reader lock, which
// excludes only the writer, so concurrent readers never block each
// other — the store's only piece of shared mutable state is this lock
// plus the published row count.
type Store struct {
	dir string
	log zerolog.Logger

	// instanceID distinguishes one process's open handle on dir from
	// another's in logs; it has no on-disk representation and plays no
	// part in recovery or row identity.
	instanceID string

	id    *fixedColumn[uint64]
	name  *nameColumn
	start *fixedColumn[int64]
	delta *fixedColumn[int64]

	mu sync.RWMutex

	rowCount atomic.Uint64

	fsyncEvery  uint64
	sinceSync   atomic.Uint64
}

// Options configures Open.
type Options struct {
	// FsyncEvery fsyncs every N appends (in addition to on Close). 0
	// disables periodic fsync (fsync still happens on Close).
	FsyncEvery uint64
	// Logger receives recovery/lifecycle events. A nil Logger defaults
	// to a no-op logger.
	Logger *zerolog.Logger
}

// Open opens (creating if necessary) the four column files under dir,
// running crash recovery, and returns a ready Store.
func Open(dir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("column: create dir %s: %w", dir, err)
	}

	idCol, err := openFixed[uint64](filepath.Join(dir, "id.col"))
	if err != nil {
		return nil, err
	}
	startCol, err := openFixed[int64](filepath.Join(dir, "start.col"))
	if err != nil {
		idCol.close()
		return nil, err
	}
	deltaCol, err := openFixed[int64](filepath.Join(dir, "delta.col"))
	if err != nil {
		idCol.close()
		startCol.close()
		return nil, err
	}
	nameCol, err := openNameColumn(filepath.Join(dir, "name.col"), filepath.Join(dir, "name.idx"))
	if err != nil {
		idCol.close()
		startCol.close()
		deltaCol.close()
		return nil, err
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	s := &Store{
		dir:        dir,
		log:        logger,
		instanceID: uuid.NewString(),
		id:         idCol,
		name:       nameCol,
		start:      startCol,
		delta:      deltaCol,
		fsyncEvery: opts.FsyncEvery,
	}

	rows, err := s.recover()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.rowCount.Store(rows)
	s.log.Debug().Uint64("rows", rows).Str("dir", dir).Str("instance", s.instanceID).Msg("column store opened")
	return s, nil
}

// InstanceID identifies this particular open handle, for correlating
// log lines across a process that reopens the same directory more than
// once; it is not persisted and has no bearing on row identity.
func (s *Store) InstanceID() string { return s.instanceID }

// recover truncates every column (and name.idx) to the minimum common
// row count, undoing any row left half-written by an unclean shutdown.
func (s *Store) recover() (uint64, error) {
	idRows, err := s.id.rowCount()
	if err != nil {
		return 0, err
	}
	startRows, err := s.start.rowCount()
	if err != nil {
		return 0, err
	}
	deltaRows, err := s.delta.rowCount()
	if err != nil {
		return 0, err
	}
	nameRows, err := s.name.rowCount()
	if err != nil {
		return 0, err
	}

	min := idRows
	if startRows < min {
		min = startRows
	}
	if deltaRows < min {
		min = deltaRows
	}
	if nameRows < min {
		min = nameRows
	}

	if idRows != min {
		if err := s.id.truncate(min); err != nil {
			return 0, err
		}
	}
	if startRows != min {
		if err := s.start.truncate(min); err != nil {
			return 0, err
		}
	}
	if deltaRows != min {
		if err := s.delta.truncate(min); err != nil {
			return 0, err
		}
	}
	if nameRows != min {
		if err := s.name.truncateRows(min); err != nil {
			return 0, err
		}
	}

	return min, nil
}

// RowCount returns the number of durably-visible rows.
func (s *Store) RowCount() uint64 {
	return s.rowCount.Load()
}

// Append writes one row to all four columns and publishes the new row
// count only once every column write has succeeded, so readers never
// observe a partially-written row. Returns the assigned id.
func (s *Store) Append(name string, startNs, deltaNs int64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.rowCount.Load()

	if err := validateName(name); err != nil {
		return 0, fmt.Errorf("column: append row %d: %w", id, err)
	}
	if err := s.id.append(id); err != nil {
		return 0, fmt.Errorf("column: append row %d: %w", id, err)
	}
	if err := s.name.append(name); err != nil {
		return 0, fmt.Errorf("column: append row %d: %w", id, err)
	}
	if err := s.start.append(startNs); err != nil {
		return 0, fmt.Errorf("column: append row %d: %w", id, err)
	}
	if err := s.delta.append(deltaNs); err != nil {
		return 0, fmt.Errorf("column: append row %d: %w", id, err)
	}

	if s.fsyncEvery > 0 && s.sinceSync.Add(1) >= s.fsyncEvery {
		s.sinceSync.Store(0)
		if err := s.syncLocked(); err != nil {
			return 0, err
		}
	}

	s.rowCount.Store(id + 1)
	return id, nil
}

// Fetch reconstructs a single row by id.
func (s *Store) Fetch(id uint64) (Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id >= s.rowCount.Load() {
		return Row{}, fmt.Errorf("%w: id %d, row count %d", ErrOutOfRange, id, s.rowCount.Load())
	}

	name, err := s.name.read(id)
	if err != nil {
		return Row{}, err
	}
	startNs, err := s.start.read(id)
	if err != nil {
		return Row{}, err
	}
	deltaNs, err := s.delta.read(id)
	if err != nil {
		return Row{}, err
	}
	return Row{ID: id, Name: name, StartNs: startNs, DeltaNs: deltaNs}, nil
}

// FetchAll returns a restartable, lazily-evaluated sequence of all rows
// in id order via the supplied callback. Returning an error from fn
// stops the scan and that error is returned from FetchAll.
func (s *Store) FetchAll(fn func(Row) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.rowCount.Load()
	for i := uint64(0); i < rows; i++ {
		name, err := s.name.read(i)
		if err != nil {
			return err
		}
		startNs, err := s.start.read(i)
		if err != nil {
			return err
		}
		deltaNs, err := s.delta.read(i)
		if err != nil {
			return err
		}
		if err := fn(Row{ID: i, Name: name, StartNs: startNs, DeltaNs: deltaNs}); err != nil {
			return err
		}
	}
	return nil
}

// ScanNames invokes fn for every (row index, name) pair, reading only
// name.col — used by the aggregation engine to build a predicate
// bitmap without touching start.col or delta.col.
func (s *Store) ScanNames(fn func(i uint64, name string) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name.scan(fn)
}

// ScanDeltaAt reads delta.col only at the given row indices, in
// ascending order, invoking fn for each. Used by the aggregation
// engine after ScanNames has produced the matching indices.
func (s *Store) ScanDeltaAt(indices []uint64, fn func(i uint64, delta int64) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, i := range indices {
		v, err := s.delta.read(i)
		if err != nil {
			return err
		}
		if err := fn(i, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) syncLocked() error {
	if err := s.id.sync(); err != nil {
		return err
	}
	if err := s.name.sync(); err != nil {
		return err
	}
	if err := s.start.sync(); err != nil {
		return err
	}
	return s.delta.sync()
}

// Sync forces all four columns to stable storage.
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncLocked()
}

// Close fsyncs and closes all four column files.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	note(s.syncLocked())
	note(s.id.close())
	note(s.name.close())
	note(s.start.close())
	note(s.delta.close())
	return firstErr
}
