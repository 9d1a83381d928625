// Package column implements the append-only, fixed-width and
// length-prefixed column files that back the capture database.
//
// Four parallel columns make up a Store: id, name, start_time_ns and
// delta_ns. Every append touches all four; every read touches only the
// columns a query actually needs.
package column

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Row is the logical tuple reconstructed from the four parallel columns.
type Row struct {
	ID        uint64
	Name      string
	StartNs   int64
	DeltaNs   int64
}

// MaxNameBytes is the largest UTF-8 encoding of function_name the store
// will accept, matching the u16 length prefix on name.col.
const MaxNameBytes = 65535

var byteOrder = binary.LittleEndian

// openOrCreate opens path for both random-access reads (ReadAt, used by
// every column's read/scan path) and appends (Write, used by every
// column's append path). O_APPEND is what makes the latter safe: it
// forces every Write to land at the current end of file regardless of
// where the file's cursor happens to sit, so reopening a populated
// store and appending to it doesn't clobber row 0 the way a plain
// O_RDWR file (cursor parked at 0 after Open) would.
func openOrCreate(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
