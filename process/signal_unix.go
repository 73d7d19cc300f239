//go:build !windows

package process

import (
	"os"
	"syscall"
)

func interrupt(p *os.Process) error {
	return p.Signal(syscall.SIGINT)
}

// exitCode reports a process killed by a signal as the negated signal number.
func exitCode(ps *os.ProcessState) int {
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return ps.ExitCode()
}
