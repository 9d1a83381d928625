package column

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// ErrInvalidName is returned when a function_name is too long or not
// valid UTF-8. The store never writes a partial record for it.
var ErrInvalidName = errors.New("column: invalid name")

// nameColumn holds the variable-width function_name field. Records in
// name.col are {u16 length}{bytes}; name.idx holds one u64 byte offset
// into name.col per row, giving O(1) random access despite the
// variable record size.
type nameColumn struct {
	data *os.File
	idx  *os.File
}

func openNameColumn(dataPath, idxPath string) (*nameColumn, error) {
	data, err := openOrCreate(dataPath)
	if err != nil {
		return nil, err
	}
	idx, err := openOrCreate(idxPath)
	if err != nil {
		data.Close()
		return nil, err
	}
	return &nameColumn{data: data, idx: idx}, nil
}

func validateName(name string) error {
	if len(name) > MaxNameBytes {
		return fmt.Errorf("%w: %d bytes exceeds max %d", ErrInvalidName, len(name), MaxNameBytes)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: not valid utf-8", ErrInvalidName)
	}
	return nil
}

// rowCount is derived from name.idx, which holds exactly one 8-byte
// offset per row.
func (c *nameColumn) rowCount() (uint64, error) {
	info, err := c.idx.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat name.idx: %w", err)
	}
	return uint64(info.Size() / 8), nil
}

// dataSize returns the current length of name.col, used as the offset
// for the next append.
func (c *nameColumn) dataSize() (int64, error) {
	info, err := c.data.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat name.col: %w", err)
	}
	return info.Size(), nil
}

func (c *nameColumn) append(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	offset, err := c.dataSize()
	if err != nil {
		return err
	}

	record := make([]byte, 2+len(name))
	binary.LittleEndian.PutUint16(record, uint16(len(name)))
	copy(record[2:], name)

	if _, err := c.data.Write(record); err != nil {
		return fmt.Errorf("append name.col: %w", err)
	}

	idxBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(idxBuf, uint64(offset))
	if _, err := c.idx.Write(idxBuf); err != nil {
		return fmt.Errorf("append name.idx: %w", err)
	}
	return nil
}

func (c *nameColumn) offsetAt(i uint64) (int64, error) {
	buf := make([]byte, 8)
	if _, err := c.idx.ReadAt(buf, int64(i)*8); err != nil {
		return 0, fmt.Errorf("read name.idx at row %d: %w", i, err)
	}
	return int64(binary.LittleEndian.Uint64(buf)), nil
}

func (c *nameColumn) read(i uint64) (string, error) {
	offset, err := c.offsetAt(i)
	if err != nil {
		return "", err
	}
	lenBuf := make([]byte, 2)
	if _, err := c.data.ReadAt(lenBuf, offset); err != nil {
		return "", fmt.Errorf("read name length at row %d: %w", i, err)
	}
	n := binary.LittleEndian.Uint16(lenBuf)
	strBuf := make([]byte, n)
	if n > 0 {
		if _, err := c.data.ReadAt(strBuf, offset+2); err != nil {
			return "", fmt.Errorf("read name bytes at row %d: %w", i, err)
		}
	}
	return string(strBuf), nil
}

// scan invokes fn with every name in id order without materialising
// the whole column in memory, since function names may repeat a
// million times over in a capture log. It reads via ReadAt at a
// locally-tracked offset rather than Seek+Read, so concurrent scans
// (two simultaneous Average calls, say) never race over the file's
// shared offset the way Seek+Read would.
func (c *nameColumn) scan(fn func(i uint64, name string) error) error {
	r := bufio.NewReaderSize(&offsetReader{f: c.data}, 64*1024)
	var idx uint64
	for {
		lenBuf := make([]byte, 2)
		if _, err := io.ReadFull(r, lenBuf); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("scan name.col: %w", err)
		}
		n := binary.LittleEndian.Uint16(lenBuf)
		strBuf := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(r, strBuf); err != nil {
				return fmt.Errorf("scan name.col: %w", err)
			}
		}
		if err := fn(idx, string(strBuf)); err != nil {
			return err
		}
		idx++
	}
	return nil
}

// offsetReader adapts os.File.ReadAt into a sequential io.Reader backed
// by a reader-local offset, instead of the file's shared offset that
// Seek/Read would mutate.
type offsetReader struct {
	f   *os.File
	off int64
}

func (r *offsetReader) Read(p []byte) (int, error) {
	n, err := r.f.ReadAt(p, r.off)
	r.off += int64(n)
	return n, err
}

func (c *nameColumn) truncateRows(rows uint64) error {
	var newDataSize int64
	if rows > 0 {
		off, err := c.offsetAt(rows - 1)
		if err != nil {
			return err
		}
		lenBuf := make([]byte, 2)
		if _, err := c.data.ReadAt(lenBuf, off); err != nil {
			return fmt.Errorf("truncate: read last record length: %w", err)
		}
		n := binary.LittleEndian.Uint16(lenBuf)
		newDataSize = off + 2 + int64(n)
	}
	if err := c.idx.Truncate(int64(rows) * 8); err != nil {
		return fmt.Errorf("truncate name.idx: %w", err)
	}
	if err := c.data.Truncate(newDataSize); err != nil {
		return fmt.Errorf("truncate name.col: %w", err)
	}
	return nil
}

func (c *nameColumn) sync() error {
	if err := syncFile(c.data); err != nil {
		return err
	}
	return syncFile(c.idx)
}

func (c *nameColumn) close() error {
	err1 := c.data.Close()
	err2 := c.idx.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
