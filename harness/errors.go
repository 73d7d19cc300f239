package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/robotraconteur/svcharness/client"
	"github.com/robotraconteur/svcharness/process"
	"github.com/robotraconteur/svcharness/readiness"
	"github.com/robotraconteur/svcharness/termination"
)

// ServiceExitError is a non zero service exit under the Strict policy.
type ServiceExitError struct {
	Code int
}

func (e *ServiceExitError) Error() string {
	return fmt.Sprintf("service exited with code %d", e.Code)
}

const (
	ExitOK              = 0
	ExitError           = 1
	ExitLaunch          = 2
	ExitReadiness       = 3
	ExitClient          = 4
	ExitShutdownTimeout = 5
	ExitServiceCode     = 6
	ExitTerminated      = 130
)

// ExitCode maps the error from a run to the harness process exit code.
func ExitCode(err error) int {
	var (
		launchErr  *process.LaunchError
		failure    *client.Failure
		serviceErr *ServiceExitError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, termination.ErrTerminated):
		return ExitTerminated
	case errors.As(err, &launchErr):
		return ExitLaunch
	case errors.Is(err, readiness.ErrTimeout), errors.Is(err, readiness.ErrServiceExited):
		return ExitReadiness
	case errors.As(err, &failure):
		return ExitClient
	case errors.Is(err, process.ErrShutdownTimeout):
		return ExitShutdownTimeout
	case errors.As(err, &serviceErr):
		return ExitServiceCode
	case errors.Is(err, context.Canceled):
		return ExitTerminated
	}
	return ExitError
}
