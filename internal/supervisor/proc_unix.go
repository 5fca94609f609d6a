//go:build !windows

package supervisor

import (
	"fmt"
	"os/exec"
	"syscall"
)

// configureProcAttr puts the child in its own process group so signals can
// reach the whole tree (node servers fork workers).
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// signalProcessGroup delivers sig to pid's process group, falling back to
// the individual process when the group signal fails.
func signalProcessGroup(pid int, sig syscall.Signal) error {
	if err := syscall.Kill(-pid, sig); err != nil {
		if err2 := syscall.Kill(pid, sig); err2 != nil {
			return fmt.Errorf("signal process group -%d: %v (process %d: %v)", pid, err, pid, err2)
		}
	}
	return nil
}

// terminateSignal is the polite shutdown request sent before the grace
// timer starts.
const terminateSignal = syscall.SIGTERM

// killSignal is the unconditional fallback once grace has elapsed.
const killSignal = syscall.SIGKILL
