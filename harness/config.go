package harness

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/robotraconteur/svcharness/client"
	"github.com/robotraconteur/svcharness/process"
	"github.com/robotraconteur/svcharness/readiness"
)

const (
	DefaultSettleDelay     = 500 * time.Millisecond
	DefaultShutdownTimeout = 10 * time.Second
)

// ExitPolicy decides whether a non zero service exit code fails the run.
type ExitPolicy int

const (
	// Lenient only prints the exit code.
	Lenient ExitPolicy = iota
	// Strict fails the run with a *ServiceExitError.
	Strict
)

func (p ExitPolicy) String() string {
	switch p {
	case Lenient:
		return "lenient"
	case Strict:
		return "strict"
	}
	return fmt.Sprintf("ExitPolicy(%d)", int(p))
}

func ParseExitPolicy(s string) (ExitPolicy, error) {
	switch s {
	case "", "lenient":
		return Lenient, nil
	case "strict":
		return Strict, nil
	}
	return Lenient, fmt.Errorf("unknown exit policy %q", s)
}

type Config struct {
	Service process.Spec
	Client  client.Invocation
	// Ready defaults to the fixed two second delay.
	Ready readiness.Waiter

	// SettleDelay is the pause between the client finishing and the interrupt.
	SettleDelay time.Duration
	// ShutdownTimeout bounds the wait after the interrupt, zero waits forever.
	ShutdownTimeout time.Duration
	// ReleaseTimeout is the grace given to a service released early, the
	// shutdown timeout when that is set, otherwise DefaultShutdownTimeout.
	ReleaseTimeout time.Duration

	ExitPolicy ExitPolicy
	// Stdout receives the exit code report, os.Stdout when nil.
	Stdout io.Writer
	// RunID is generated when empty.
	RunID string
}

func (c Config) Validate() error {
	var errs []error
	if c.Service.Path == "" {
		errs = append(errs, errors.New("no service given"))
	}
	if c.Client.Path == "" {
		errs = append(errs, errors.New("no client given"))
	}
	if c.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("negative settle delay: %s", c.SettleDelay))
	}
	if c.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("negative shutdown timeout: %s", c.ShutdownTimeout))
	}
	if c.ReleaseTimeout < 0 {
		errs = append(errs, fmt.Errorf("negative release timeout: %s", c.ReleaseTimeout))
	}
	if c.ExitPolicy != Lenient && c.ExitPolicy != Strict {
		errs = append(errs, fmt.Errorf("unknown exit policy %s", c.ExitPolicy))
	}
	return errors.Join(errs...)
}

func (c Config) withDefaults() Config {
	if c.Ready == nil {
		c.Ready = readiness.Delay{Duration: readiness.DefaultDelay}
	}
	if c.ReleaseTimeout == 0 {
		c.ReleaseTimeout = c.ShutdownTimeout
	}
	if c.ReleaseTimeout == 0 {
		c.ReleaseTimeout = DefaultShutdownTimeout
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	return c
}
