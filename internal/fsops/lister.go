package fsops

import (
	"io/fs"
	"os"
	"path/filepath"
)

// OSLister implements Lister on the real filesystem.
// Sizes enables per-file size collection, which costs an lstat per file
// on Unix (Windows gets it for free from the find data).
type OSLister struct {
	Sizes bool
	// Mounts lists mount points to stop at; nil means SystemMounts()
	Mounts MountTable
}

func (l OSLister) Lstat(path string) (EntryType, int64, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return TypeFile, 0, err
	}
	t := typeOfMode(info.Mode(), info)
	if t != TypeFile {
		return t, 0, nil
	}
	return t, info.Size(), nil
}

func (l OSLister) ReadDir(dir string) ([]DirEntry, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}

	var edge *boundary
	out := make([]DirEntry, 0, len(entries))
	for _, d := range entries {
		e := DirEntry{Name: d.Name()}
		var info fs.FileInfo
		// subdirectories are stat'ed too, for the device check
		if needsInfo(d) || d.IsDir() || (l.Sizes && d.Type().IsRegular()) {
			info, err = d.Info()
			if err != nil {
				// removed between readdir and lstat; nothing left to delete
				if IsNotFound(err) {
					continue
				}
				return nil, &fs.PathError{Op: "lstat", Path: filepath.Join(dir, d.Name()), Err: err}
			}
		}
		mode := d.Type()
		if info != nil {
			mode = info.Mode()
		}
		e.Type = typeOfMode(mode, info)
		if e.Type == TypeDir {
			if edge == nil {
				table := l.Mounts
				if table == nil {
					table = SystemMounts()
				}
				edge = newBoundary(table, dir, f)
			}
			if edge.crosses(e.Name, info) {
				e.Type = TypeMount
			}
		}
		if e.Type == TypeFile && info != nil {
			e.Size = info.Size()
		}
		out = append(out, e)
	}
	return out, nil
}

// typeOfMode never reports a link as a directory, so the scanner cannot
// descend through a junction or symlink. Sockets, pipes and devices are
// plain unlinkable files.
func typeOfMode(mode fs.FileMode, info fs.FileInfo) EntryType {
	switch {
	case mode&fs.ModeSymlink != 0, mode&fs.ModeIrregular != 0, isReparsePoint(info):
		return TypeLink
	case mode.IsDir():
		return TypeDir
	default:
		return TypeFile
	}
}
