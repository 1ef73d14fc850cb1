//go:build unix

package media

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate sends SIGTERM to the process group led by proc.
func terminate(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	err := unix.Kill(-proc.Pid, unix.SIGTERM)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ESRCH):
		return os.ErrProcessDone
	}
	if err := proc.Signal(unix.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return err
		}
		return proc.Kill()
	}
	return nil
}

// killGroup sends SIGKILL to any process still left in the group led by proc.
func killGroup(proc *os.Process) {
	if proc == nil {
		return
	}
	_ = unix.Kill(-proc.Pid, unix.SIGKILL)
}
