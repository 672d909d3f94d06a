//go:build !unix

package runner

import (
	"errors"
	"os"
	"os/exec"
)

// setProcessGroup is a no-op on non-Unix platforms.
func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup kills the process directly on non-Unix platforms.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	err := cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// killedBySignal approximates a kill on platforms without signals: a
// killed process reports a failed exit.
func killedBySignal(state *os.ProcessState) bool {
	return state != nil && !state.Success()
}
