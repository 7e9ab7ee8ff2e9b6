//go:build unix

package fsops

import (
	"syscall"

	"golang.org/x/sys/unix"

	"rmx/internal/report"
)

func classifyErrno(errno syscall.Errno) report.Kind {
	switch errno {
	case unix.EBUSY, unix.ETXTBSY:
		return report.KindTransientLock
	case unix.EACCES, unix.EPERM, unix.EROFS:
		return report.KindPermissionDenied
	case unix.ENOENT:
		return report.KindNotFound
	case unix.ENOTEMPTY, unix.EEXIST:
		return report.KindNotEmpty
	}
	return report.KindOther
}
