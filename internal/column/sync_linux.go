//go:build linux

package column

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncFile flushes file to stable storage. On Linux we prefer fdatasync
// over fsync: it skips the metadata (mtime/size) flush when the file
// size hasn't changed since the last sync, which matters on the hot
// append path where this runs every FsyncEvery rows.
func syncFile(f *os.File) error {
	err := unix.Fdatasync(int(f.Fd()))
	if err != nil {
		return f.Sync()
	}
	return nil
}
