//go:build linux

package worker

import (
	"os/exec"
	"syscall"
)

// setProcAttrs puts the worker in its own process group so a kill also
// reaches anything it spawned, and asks the kernel to SIGKILL it if the
// server dies first.
func setProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}

func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err == nil {
		return nil
	}
	return cmd.Process.Kill()
}
