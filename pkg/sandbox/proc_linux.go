//go:build linux

package sandbox

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// setParentDeathSignal kills the child when the engine itself dies.
func setParentDeathSignal(attr *syscall.SysProcAttr) {
	attr.Pdeathsig = unix.SIGKILL
}
