//go:build !unix && !windows

package fsops

import "os"

func removeEntry(path string, _ bool) error {
	return os.Remove(path)
}
