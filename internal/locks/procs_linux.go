package locks

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

type procfsManager struct {
	fs  procfs.FS
	err error
}

// NewProcessManager scans /proc file descriptors to find holders and ends
// them with SIGKILL
func NewProcessManager() ProcessManager {
	fs, err := procfs.NewDefaultFS()
	return &procfsManager{fs: fs, err: err}
}

func (m *procfsManager) Holders(path string) ([]Process, error) {
	if m.err != nil {
		return nil, fmt.Errorf("open procfs: %w", m.err)
	}
	target := canonical(path)

	procs, err := m.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var out []Process
	for _, p := range procs {
		// processes we may not inspect, or that exited meanwhile, are skipped
		fds, err := p.FileDescriptorTargets()
		if err != nil {
			continue
		}
		if !holds(fds, target) {
			continue
		}
		name, _ := p.Comm()
		out = append(out, Process{PID: p.PID, Name: name})
	}
	return out, nil
}

// canonical resolves the directories leading to path but never its last
// component: a link is matched by its own name, not by what it points at.
func canonical(path string) string {
	p := filepath.Clean(path)
	dir, name := filepath.Split(p)
	if name == "" {
		return p
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return filepath.Join(resolved, name)
	}
	return p
}

func holds(fds []string, target string) bool {
	for _, fd := range fds {
		if fd == target || strings.HasPrefix(fd, target+"/") {
			return true
		}
	}
	return false
}

func (m *procfsManager) Terminate(p Process) error {
	err := unix.Kill(p.PID, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
