// Package kronicler is an in-process function-call profiler: whenever a
// designated function or HTTP endpoint runs, its name, start time and
// duration are recorded to a columnar, embedded, append-only database.
// Captures are cheap to produce even from many concurrent goroutines;
// aggregates (presence by name, average duration by name) are computed
// by scanning only the columns a query needs, never by reconstructing
// rows.
//
// A single process-wide Database is expected; see Get for the
// lazily-initialised singleton adapters are meant to share.
package kronicler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/JakeRoggenbuck/kronicler/internal/column"
)

// DefaultDirectory is the on-disk directory used when no directory is
// configured explicitly, matching the Python/Rust original's
// ".kronicler_data" default.
const DefaultDirectory = ".kronicler_data"

// Row is the ordered tuple (id, name, start_ns, delta_ns) reconstructed
// from the four parallel columns.
type Row struct {
	ID      uint64
	Name    string
	StartNs int64
	DeltaNs int64
}

// ErrOutOfRange is returned by Fetch when id >= the current row count.
var ErrOutOfRange = errors.New("kronicler: id out of range")

// ErrInvalidName is returned when a function_name exceeds 65535 bytes
// or is not valid UTF-8.
var ErrInvalidName = errors.New("kronicler: invalid name")

// IoError wraps an underlying filesystem failure (open, read, write,
// stat, sync) that surfaced while operating on the column store's
// files, distinguishing infrastructure failures — disk full,
// permission denied, device gone — from this package's own sentinel
// errors. Use errors.As(err, &ioErr) to recover Op and the wrapped
// error.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string { return fmt.Sprintf("kronicler: %s: io: %v", e.Op, e.Err) }

func (e *IoError) Unwrap() error { return e.Err }

// enabledFromEnv implements the KRONICLER_ENABLED contract: "0" or
// "false" (case-insensitive) disables capture. Anything else,
// including unset, leaves it enabled.
func enabledFromEnv() bool {
	v, ok := os.LookupEnv("KRONICLER_ENABLED")
	if !ok {
		return true
	}
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "0" || v == "false" {
		return false
	}
	return true
}

// Enabled reports whether KRONICLER_ENABLED currently permits capture.
// Adapters should check this once, at wrap time, and degrade to an
// identity wrapper rather than re-checking on every call.
func Enabled() bool { return enabledFromEnv() }

func syncFromEnv(fallback bool) bool {
	v, ok := os.LookupEnv("KRONICLER_SYNC")
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func directoryFromEnv(fallback string) string {
	if v, ok := os.LookupEnv("KRONICLER_DIRECTORY"); ok && v != "" {
		return v
	}
	return fallback
}

// wrapErr translates an internal/column error into this package's
// public error surface: the two sentinel conditions keep their
// sentinel identity (so callers can errors.Is against kronicler's own
// ErrOutOfRange/ErrInvalidName rather than column's), and any error
// that bottoms out in an *fs.PathError — a genuine filesystem failure
// rather than a validation error — is wrapped as an *IoError instead
// of the plain op-annotated error every other failure gets.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, column.ErrOutOfRange) {
		return fmt.Errorf("kronicler: %s: %w", op, ErrOutOfRange)
	}
	if errors.Is(err, column.ErrInvalidName) {
		return fmt.Errorf("kronicler: %s: %w", op, ErrInvalidName)
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return &IoError{Op: op, Err: err}
	}
	return fmt.Errorf("kronicler: %s: %w", op, err)
}
