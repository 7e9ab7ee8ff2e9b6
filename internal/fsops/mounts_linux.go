package fsops

import (
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/procfs"
)

var systemMounts = sync.OnceValue(func() MountTable {
	mounts, err := procfs.GetMounts()
	if err != nil {
		// the device comparison still applies
		return mountSet{}
	}
	set := make(mountSet, len(mounts))
	for _, m := range mounts {
		set[unescapeMountPath(m.MountPoint)] = struct{}{}
	}
	return set
})

// SystemMounts returns the mount points of this process's mount namespace,
// read once from /proc/self/mountinfo
func SystemMounts() MountTable {
	return systemMounts()
}

// unescapeMountPath undoes the octal escapes mountinfo uses for space, tab,
// newline and backslash
func unescapeMountPath(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+4 <= len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
