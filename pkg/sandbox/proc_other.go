//go:build !unix

package sandbox

import (
	"os"
	"os/exec"
)

type signal = os.Signal

var sigTerm signal = os.Kill

func configureProcessGroup(*exec.Cmd) {}

// signalGroup can only reach the direct child on platforms without
// process groups.
func signalGroup(pid int, _ signal) error {
	if pid <= 0 {
		return nil
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	_ = p.Kill()
	return nil
}

func killGroup(pid int) error {
	return signalGroup(pid, os.Kill)
}
