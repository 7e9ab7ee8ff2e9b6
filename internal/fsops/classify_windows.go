//go:build windows

package fsops

import (
	"syscall"

	"golang.org/x/sys/windows"

	"rmx/internal/report"
)

func classifyErrno(errno syscall.Errno) report.Kind {
	switch errno {
	case windows.ERROR_SHARING_VIOLATION, windows.ERROR_LOCK_VIOLATION, windows.ERROR_USER_MAPPED_FILE:
		return report.KindTransientLock
	case windows.ERROR_ACCESS_DENIED, windows.ERROR_WRITE_PROTECT:
		return report.KindPermissionDenied
	case windows.ERROR_FILE_NOT_FOUND, windows.ERROR_PATH_NOT_FOUND, windows.ERROR_INVALID_NAME, windows.ERROR_BAD_PATHNAME:
		return report.KindNotFound
	case windows.ERROR_DIR_NOT_EMPTY:
		return report.KindNotEmpty
	}
	return report.KindOther
}
