// Package aggregate computes the predicates and reductions exposed by
// the query surface (presence by name, average delta conditioned on
// name) by scanning column.Store columns directly, without ever
// reconstructing a joined row set.
package aggregate

import (
	"github.com/JakeRoggenbuck/kronicler/internal/column"
	"github.com/JakeRoggenbuck/kronicler/internal/obs"
)

// ContainsName scans name.col sequentially and returns true on the
// first row whose function_name equals name. Worst case O(N); there is
// no index.
func ContainsName(store *column.Store, name string) (bool, error) {
	found := false
	err := store.ScanNames(func(_ uint64, n string) error {
		if n == name {
			found = true
			return errStop
		}
		return nil
	})
	if err == errStop {
		err = nil
	}
	return found, err
}

// sentinel used to short-circuit a scan once a match is found; never
// escapes this package.
type stopScan struct{}

func (stopScan) Error() string { return "aggregate: scan stopped early" }

var errStop error = stopScan{}

// Average performs a two-pass scan: first name.col alone to collect
// the row indices whose function_name equals name, then delta.col only
// at those indices. Returns 0.0 if the name does not occur. The running
// sum is kept in int64 and widened into float64 every 1<<20 additions
// so it never overflows across arbitrarily many rows (see DESIGN.md for
// why this stands in for a true 128-bit accumulator, which Go doesn't
// have natively).
func Average(store *column.Store, name string) (float64, error) {
	t := obs.NewTimer()
	defer t.ObserveDuration(obs.AverageDuration)

	var matches []uint64
	err := store.ScanNames(func(i uint64, n string) error {
		if n == name {
			matches = append(matches, i)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}

	const widenEvery = 1 << 20
	var partialSum int64
	var total float64
	var sinceWiden int

	err = store.ScanDeltaAt(matches, func(_ uint64, delta int64) error {
		partialSum += delta
		sinceWiden++
		if sinceWiden >= widenEvery {
			total += float64(partialSum)
			partialSum = 0
			sinceWiden = 0
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	total += float64(partialSum)

	return total / float64(len(matches)), nil
}
