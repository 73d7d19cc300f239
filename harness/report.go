package harness

import (
	"context"
	"fmt"
	"io"

	"github.com/robotraconteur/svcharness/o11y"
)

// Report writes the service exit code when it is not zero. Under Lenient the
// result is an o11y warning, under Strict a *ServiceExitError.
func Report(ctx context.Context, w io.Writer, policy ExitPolicy, code int) error {
	o11y.AddField(ctx, "exit_code", code)
	if code == 0 {
		return nil
	}

	_, err := fmt.Fprintf(w, "Service return code: %d\n", code)
	if err != nil {
		return fmt.Errorf("failed to report exit code: %w", err)
	}

	if policy == Strict {
		return &ServiceExitError{Code: code}
	}
	return o11y.NewWarning(fmt.Sprintf("service exited with code %d", code))
}
