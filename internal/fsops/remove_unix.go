//go:build unix

package fsops

import (
	"io/fs"

	"golang.org/x/sys/unix"
)

// unlink(2) and rmdir(2) already drop the name immediately and never
// follow a trailing symlink.
func removeEntry(path string, dir bool) error {
	if dir {
		if err := unix.Rmdir(path); err != nil {
			return &fs.PathError{Op: "rmdir", Path: path, Err: err}
		}
		return nil
	}
	if err := unix.Unlinkat(unix.AT_FDCWD, path, 0); err != nil {
		return &fs.PathError{Op: "unlink", Path: path, Err: err}
	}
	return nil
}
