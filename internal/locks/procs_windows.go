//go:build windows

package locks

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"rmx/internal/fsops"
)

// Restart Manager is not wrapped by x/sys/windows
var (
	modrstrtmgr = windows.NewLazySystemDLL("rstrtmgr.dll")

	procRmStartSession      = modrstrtmgr.NewProc("RmStartSession")
	procRmRegisterResources = modrstrtmgr.NewProc("RmRegisterResources")
	procRmGetList           = modrstrtmgr.NewProc("RmGetList")
	procRmEndSession        = modrstrtmgr.NewProc("RmEndSession")
)

const (
	cchRmSessionKey = 32
	cchRmMaxAppName = 255
	cchRmMaxSvcName = 63
	errorMoreData   = 234
	maxListTries    = 4
)

type rmUniqueProcess struct {
	ProcessID        uint32
	ProcessStartTime windows.Filetime
}

type rmProcessInfo struct {
	Process          rmUniqueProcess
	AppName          [cchRmMaxAppName + 1]uint16
	ServiceShortName [cchRmMaxSvcName + 1]uint16
	ApplicationType  int32
	AppStatus        uint32
	TSSessionID      uint32
	Restartable      int32
}

type restartManager struct{}

// NewProcessManager asks the Restart Manager for holders and ends them
// with TerminateProcess
func NewProcessManager() ProcessManager {
	return restartManager{}
}

func (restartManager) Holders(path string) ([]Process, error) {
	if err := modrstrtmgr.Load(); err != nil {
		return nil, fmt.Errorf("load restart manager: %w", err)
	}

	var session uint32
	var key [cchRmSessionKey + 1]uint16
	if r, _, _ := procRmStartSession.Call(
		uintptr(unsafe.Pointer(&session)), 0, uintptr(unsafe.Pointer(&key[0])),
	); r != 0 {
		return nil, fmt.Errorf("RmStartSession: %w", syscall.Errno(r))
	}
	defer procRmEndSession.Call(uintptr(session))

	// same extended-length form the deletion primitive opens
	name, err := windows.UTF16PtrFromString(fsops.LongPath(path))
	if err != nil {
		return nil, err
	}
	files := []*uint16{name}
	if r, _, _ := procRmRegisterResources.Call(
		uintptr(session), 1, uintptr(unsafe.Pointer(&files[0])), 0, 0, 0, 0,
	); r != 0 {
		return nil, fmt.Errorf("RmRegisterResources %s: %w", path, syscall.Errno(r))
	}

	var infos []rmProcessInfo
	var count uint32
	for try := 0; ; try++ {
		var needed, reasons uint32
		count = uint32(len(infos))
		var buf uintptr
		if count > 0 {
			buf = uintptr(unsafe.Pointer(&infos[0]))
		}
		r, _, _ := procRmGetList.Call(
			uintptr(session),
			uintptr(unsafe.Pointer(&needed)),
			uintptr(unsafe.Pointer(&count)),
			buf,
			uintptr(unsafe.Pointer(&reasons)),
		)
		if r == 0 {
			break
		}
		if r != errorMoreData || try == maxListTries {
			return nil, fmt.Errorf("RmGetList %s: %w", path, syscall.Errno(r))
		}
		// the holder list can grow between calls
		infos = make([]rmProcessInfo, needed+1)
	}

	out := make([]Process, 0, count)
	for _, info := range infos[:count] {
		out = append(out, Process{
			PID:  int(info.Process.ProcessID),
			Name: windows.UTF16ToString(info.AppName[:]),
		})
	}
	return out, nil
}

func (restartManager) Terminate(p Process) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(p.PID))
	if err != nil {
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
			// already exited
			return nil
		}
		return fmt.Errorf("open process %d: %w", p.PID, err)
	}
	defer windows.CloseHandle(h)
	if err := windows.TerminateProcess(h, 1); err != nil {
		return fmt.Errorf("terminate process %d: %w", p.PID, err)
	}
	return nil
}
