//go:build linux || darwin || freebsd || netbsd || openbsd

package agent

import (
	"os/exec"
	"syscall"
)

// configureProcess puts the agent in its own process group so a timeout
// also kills the tools it spawned.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}
