package process

import (
	"errors"
	"fmt"
)

// LaunchError is returned when the service could not be started at all.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

var (
	// ErrShutdownTimeout means the service did not exit after the interrupt and had to be killed.
	ErrShutdownTimeout = errors.New("service did not exit after interrupt")
	ErrNotRunning      = errors.New("service is not running")
	ErrNotSignaled     = errors.New("service has not been signaled")
)
