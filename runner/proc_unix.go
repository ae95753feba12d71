//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
)

func defaultInterpreter() string {
	return "python3"
}

// setupProcessGroup puts the child in its own group so grandchildren die
// with it on timeout.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Kill()
	}
	return syscall.Kill(-pgid, syscall.SIGKILL)
}
