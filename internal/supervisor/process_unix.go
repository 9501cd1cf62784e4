//go:build !windows

package supervisor

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

const launcherName = "start.sh"

func launcherCommand(path string) *exec.Cmd {
	return exec.Command("bash", path)
}

func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateProcess(pid int) error {
	return signalGroup(pid, unix.SIGTERM)
}

func killProcess(pid int) error {
	return signalGroup(pid, unix.SIGKILL)
}

// The child leads its own group, so -pid reaches everything the launcher
// script spawned.
func signalGroup(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return nil
	}
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		err = unix.Kill(pid, sig)
	}
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
