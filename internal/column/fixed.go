package column

import (
	"fmt"
	"os"
)

// fixedInt is the set of types fixedColumn can store: u64 for ids, i64
// for timestamps and durations.
type fixedInt interface {
	~uint64 | ~int64
}

// fixedColumn is an append-only file of one fixed-width little-endian
// integer per row. id.col, start.col and delta.col are each one
// instance of this generic, rather than three hand-duplicated files —
// they only ever differ in element type.
type fixedColumn[T fixedInt] struct {
	file *os.File
	path string
}

func openFixed[T fixedInt](path string) (*fixedColumn[T], error) {
	f, err := openOrCreate(path)
	if err != nil {
		return nil, err
	}
	return &fixedColumn[T]{file: f, path: path}, nil
}

func (c *fixedColumn[T]) width() int64 {
	var zero T
	switch any(zero).(type) {
	case uint64:
		return 8
	case int64:
		return 8
	}
	return 8
}

// rowCount returns the number of complete records currently on disk.
func (c *fixedColumn[T]) rowCount() (uint64, error) {
	info, err := c.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", c.path, err)
	}
	return uint64(info.Size() / c.width()), nil
}

// append writes one record at the end of the file.
func (c *fixedColumn[T]) append(v T) error {
	buf := make([]byte, c.width())
	encodeFixed(buf, v)
	if _, err := c.file.Write(buf); err != nil {
		return fmt.Errorf("append %s: %w", c.path, err)
	}
	return nil
}

// read reads the record at row index i.
func (c *fixedColumn[T]) read(i uint64) (T, error) {
	var zero T
	buf := make([]byte, c.width())
	off := int64(i) * c.width()
	if _, err := c.file.ReadAt(buf, off); err != nil {
		return zero, fmt.Errorf("read %s at row %d: %w", c.path, i, err)
	}
	return decodeFixed[T](buf), nil
}

func (c *fixedColumn[T]) truncate(rows uint64) error {
	return c.file.Truncate(int64(rows) * c.width())
}

func (c *fixedColumn[T]) sync() error {
	return syncFile(c.file)
}

func (c *fixedColumn[T]) close() error {
	return c.file.Close()
}

func encodeFixed[T fixedInt](buf []byte, v T) {
	switch x := any(v).(type) {
	case uint64:
		byteOrder.PutUint64(buf, x)
	case int64:
		byteOrder.PutUint64(buf, uint64(x))
	}
}

func decodeFixed[T fixedInt](buf []byte) T {
	var zero T
	switch any(zero).(type) {
	case uint64:
		return any(byteOrder.Uint64(buf)).(T)
	case int64:
		return any(int64(byteOrder.Uint64(buf))).(T)
	}
	return zero
}
