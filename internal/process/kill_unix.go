//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// Detach starts cmd in its own process group so KillProcessGroup reaches
// every process it spawns.
func Detach(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// KillProcessGroup kills a process and all its children by sending SIGKILL
// to the process group (negative PID). Errors are ignored: the process may
// already be gone.
func KillProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
