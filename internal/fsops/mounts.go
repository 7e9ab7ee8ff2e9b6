package fsops

import (
	"io/fs"
	"os"
	"path/filepath"
)

// MountTable answers whether another filesystem is mounted on a directory
type MountTable interface {
	IsMountPoint(path string) bool
}

type mountSet map[string]struct{}

func (m mountSet) IsMountPoint(path string) bool {
	_, ok := m[path]
	return ok
}

// boundary spots subdirectories of one directory that belong to another
// filesystem, either by mount table or by a device change (which also
// catches mounts made after the table was read).
type boundary struct {
	table   MountTable
	dir     string
	dev     uint64
	haveDev bool
}

func newBoundary(table MountTable, dir string, f *os.File) *boundary {
	b := &boundary{table: table, dir: dir}
	// the table lists real paths; only the parent is resolved, never the entry
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		b.dir = resolved
	}
	if info, err := f.Stat(); err == nil {
		b.dev, b.haveDev = deviceOf(info)
	}
	return b
}

func (b *boundary) crosses(name string, info fs.FileInfo) bool {
	if b.table.IsMountPoint(filepath.Join(b.dir, name)) {
		return true
	}
	if !b.haveDev || info == nil {
		return false
	}
	dev, ok := deviceOf(info)
	return ok && dev != b.dev
}
