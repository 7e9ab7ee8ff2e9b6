package fsops

import (
	"errors"
	"io/fs"
	"syscall"

	"rmx/internal/report"
)

// ErrLocked is the portable lock-class error, used by fakes and tests
// where no OS status can stand in for a sharing violation.
var ErrLocked = errors.New("entry is in use by another process")

// Classify maps an OS error onto the failure taxonomy and extracts the raw
// status code when there is one.
func Classify(err error) (report.Kind, int) {
	if err == nil {
		return report.KindOther, 0
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if kind := classifyErrno(errno); kind != report.KindOther {
			return kind, int(errno)
		}
	}

	code := int(errno)
	switch {
	case errors.Is(err, ErrLocked):
		return report.KindTransientLock, code
	case errors.Is(err, fs.ErrNotExist):
		return report.KindNotFound, code
	case errors.Is(err, fs.ErrPermission):
		return report.KindPermissionDenied, code
	}
	return report.KindOther, code
}

// IsNotFound reports whether the entry was already gone
func IsNotFound(err error) bool {
	kind, _ := Classify(err)
	return kind == report.KindNotFound
}
