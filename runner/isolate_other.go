//go:build !unix

package runner

import "os/exec"

// isolate falls back to killing the worker process alone.
func isolate(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Kill()
	}
}
