//go:build windows

package process

import (
	"errors"
	"fmt"
	"os"
)

func interrupt(*os.Process) error {
	return fmt.Errorf("interrupt: %w", errors.ErrUnsupported)
}

func exitCode(ps *os.ProcessState) int {
	return ps.ExitCode()
}
