//go:build unix

package invoker

import (
	"errors"
	"os/exec"
	"syscall"
)

// configureProcessGroup starts the child in its own process group and makes
// context cancellation kill the whole group, so helpers spawned by the bridge
// binary die with it.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if err == nil || errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return cmd.Process.Kill()
	}
}
