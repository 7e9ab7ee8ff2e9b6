//go:build windows

package fsops

import (
	"io/fs"
	"syscall"

	"golang.org/x/sys/windows"
)

// needsInfo is always true on Windows: the attributes come from the find
// data so Info() is free, and only they reveal mount points reliably.
func needsInfo(fs.DirEntry) bool { return true }

func isReparsePoint(info fs.FileInfo) bool {
	if info == nil {
		return false
	}
	attrs, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return false
	}
	return attrs.FileAttributes&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0
}
