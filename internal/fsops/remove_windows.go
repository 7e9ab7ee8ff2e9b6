//go:build windows

package fsops

import (
	"errors"
	"io/fs"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	accessDelete      = 0x00010000
	accessSynchronize = 0x00100000

	// FILE_INFO_BY_HANDLE_CLASS
	fileDispositionInfo   = 4
	fileDispositionInfoEx = 21

	// FILE_DISPOSITION_INFO_EX flags
	dispositionDelete         = 0x00000001
	dispositionPOSIXSemantics = 0x00000002
	dispositionIgnoreReadOnly = 0x00000010
)

// removeEntry opens the entry itself (never a reparse target) with only
// DELETE|SYNCHRONIZE and full sharing, then marks it for POSIX-style delete
// so the name disappears as soon as the disposition is set.
func removeEntry(path string, dir bool) error {
	name, err := windows.UTF16PtrFromString(LongPath(path))
	if err != nil {
		return &fs.PathError{Op: "remove", Path: path, Err: err}
	}

	// BACKUP_SEMANTICS is required for directories and harmless for files,
	// so directory-typed reparse records go through the same call.
	h, err := windows.CreateFile(
		name,
		accessDelete|accessSynchronize,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_OPEN_REPARSE_POINT|windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		return &fs.PathError{Op: "open", Path: path, Err: err}
	}
	defer windows.CloseHandle(h)

	flags := uint32(dispositionDelete | dispositionPOSIXSemantics | dispositionIgnoreReadOnly)
	err = windows.SetFileInformationByHandle(h, fileDispositionInfoEx, (*byte)(unsafe.Pointer(&flags)), uint32(unsafe.Sizeof(flags)))
	if errors.Is(err, windows.ERROR_INVALID_PARAMETER) || errors.Is(err, windows.ERROR_NOT_SUPPORTED) || errors.Is(err, windows.ERROR_INVALID_FUNCTION) {
		// FAT volumes and pre-1809 builds only know the legacy class
		deleteFile := byte(1)
		err = windows.SetFileInformationByHandle(h, fileDispositionInfo, &deleteFile, 1)
	}
	if err != nil {
		op := "delete"
		if dir {
			op = "rmdir"
		}
		return &fs.PathError{Op: op, Path: path, Err: err}
	}
	return nil
}
