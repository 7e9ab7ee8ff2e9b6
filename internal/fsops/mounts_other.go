//go:build !linux

package fsops

// SystemMounts has no table outside Linux. Unix falls back to comparing
// device numbers; Windows mount points are reparse points already.
func SystemMounts() MountTable {
	return mountSet{}
}
