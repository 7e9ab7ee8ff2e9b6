//go:build !linux && !windows

package locks

import "errors"

type noProcesses struct{}

// NewProcessManager returns a manager that never finds holders
func NewProcessManager() ProcessManager {
	return noProcesses{}
}

func (noProcesses) Holders(string) ([]Process, error) { return nil, nil }

func (noProcesses) Terminate(Process) error {
	return errors.New("process termination is not supported on this platform")
}
