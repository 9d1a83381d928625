//go:build !linux

package column

import "os"

func syncFile(f *os.File) error {
	return f.Sync()
}
