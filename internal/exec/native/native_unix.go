//go:build !windows

package native

import (
	"os"
	osexec "os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// isAlive treats kill(pid, 0)-equivalent as the liveness primitive.
func isAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// setProcessGroup places the child in its own process group so that
// killProcessGroup can signal the whole tree.
func setProcessGroup(cmd *osexec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends SIGTERM to the process group led by pid.
func killProcessGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}

// processImageName reads /proc/<pid>/comm to identify the running
// executable, used both when recording a freshly started process and
// when verifying a persisted record before re-adoption (defends against
// pid reuse). comm holds at most 15 bytes, so long executable names
// come back truncated. A failed or empty comm read falls back to the
// base name of the first NUL-delimited argument in /proc/<pid>/cmdline;
// fallback is returned only if both reads fail.
func processImageName(pid int, fallback string) string {
	pidDir := "/proc/" + strconv.Itoa(pid)

	if data, err := os.ReadFile(pidDir + "/comm"); err == nil {
		if name := strings.TrimSpace(string(data)); name != "" {
			return name
		}
	}

	if data, err := os.ReadFile(pidDir + "/cmdline"); err == nil {
		arg0, _, _ := strings.Cut(string(data), "\x00")
		if arg0 != "" {
			return filepath.Base(arg0)
		}
	}

	return fallback
}
