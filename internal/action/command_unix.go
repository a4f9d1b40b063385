//go:build unix

package action

import (
	"os/exec"
	"syscall"
)

// ownGroup starts cmd as the leader of a new process group so a wrapper
// shell and everything it spawns can be killed together.
func ownGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killGroup(cmd *exec.Cmd) error {
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
