//go:build windows

package daemon

import (
	"os"
	"os/exec"
)

// IsProcessRunning checks if a process with the given PID is running.
// On Windows FindProcess fails for processes that have exited.
func IsProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	process.Release()
	return true
}

func detach(cmd *exec.Cmd) {}
