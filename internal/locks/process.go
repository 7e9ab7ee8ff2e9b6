package locks

import "os"

// Process identifies a process holding a path open
type Process struct {
	PID  int
	Name string
}

// ProcessManager finds and terminates the processes that hold a path
type ProcessManager interface {
	// Holders lists the processes with the path (or anything below it) open
	Holders(path string) ([]Process, error)
	// Terminate forcibly ends p
	Terminate(p Process) error
}

// protected reports whether pid must never be terminated: the idle and
// system pseudo-processes, init, and ourselves.
func protected(pid int) bool {
	switch pid {
	case 0, 1, 4:
		return true
	}
	return pid == os.Getpid()
}
