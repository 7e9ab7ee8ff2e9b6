//go:build !unix && !windows

package fsops

import (
	"syscall"

	"rmx/internal/report"
)

func classifyErrno(syscall.Errno) report.Kind { return report.KindOther }
