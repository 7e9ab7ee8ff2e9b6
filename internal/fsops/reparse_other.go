//go:build !windows

package fsops

import "io/fs"

// d_type is enough everywhere else; only DT_UNKNOWN needs an lstat.
func needsInfo(d fs.DirEntry) bool {
	return d.Type()&fs.ModeType == fs.ModeIrregular
}

func isReparsePoint(fs.FileInfo) bool { return false }
