package fsops

// Deleter abstracts the single-entry delete primitive.
// Enables swapping in a no-op for dry-run and a recorder in tests.
type Deleter interface {
	// RemoveFile removes a file or a link/reparse record without following it
	RemoveFile(path string) error
	// RemoveDir removes an empty directory
	RemoveDir(path string) error
}

// EntryType is the scanner's view of a directory entry
type EntryType int

const (
	TypeFile EntryType = iota
	TypeDir
	TypeLink // symlink, junction, volume mount or other reparse record
	// TypeMount is a Unix directory with another filesystem mounted on it.
	// It is neither entered nor removed.
	TypeMount
)

func (t EntryType) String() string {
	switch t {
	case TypeDir:
		return "dir"
	case TypeLink:
		return "link"
	case TypeMount:
		return "mount"
	default:
		return "file"
	}
}

// DirEntry is one child returned by Lister.ReadDir
type DirEntry struct {
	Name string
	Type EntryType
	Size int64
}

// Lister enumerates directories without following links
type Lister interface {
	Lstat(path string) (EntryType, int64, error)
	ReadDir(dir string) ([]DirEntry, error)
}
