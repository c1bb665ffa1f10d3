//go:build unix

package runner

import (
	"os/exec"
	"syscall"
)

// isolate puts the worker in its own process group so that cancellation
// also kills the browser processes it launched.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
