//go:build windows

package native

import (
	"os"
	osexec "os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

const stillActive = 259

// isAlive treats a successful OpenProcess plus a STILL_ACTIVE exit code
// as the liveness primitive, the Windows equivalent of kill(pid, 0).
func isAlive(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == stillActive
}

// setProcessGroup places the child in its own process group so that
// killProcessGroup can terminate the whole tree.
func setProcessGroup(cmd *osexec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// killProcessGroup terminates the process tree rooted at pid.
func killProcessGroup(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}

// processImageName resolves the executable name backing pid via
// QueryFullProcessImageName, used to defend against pid reuse on
// re-adoption exactly as the POSIX /proc/<pid>/comm read does.
func processImageName(pid int, fallback string) string {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return fallback
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return fallback
	}
	return windows.UTF16ToString(buf[:size])
}
