// Package readiness decides when a launched service may be used by the client.
//
// Delay is a fixed sleep that learns nothing about the service. Marker, TCP and HTTP are
// handshakes: they poll until the service shows it is ready, fail fast when the
// service exits first and give up after a timeout.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/robotraconteur/svcharness/o11y"
)

const (
	DefaultDelay   = 2 * time.Second
	DefaultTimeout = 20 * time.Second

	pollInterval = 20 * time.Millisecond
)

var (
	ErrServiceExited = errors.New("service exited before it was ready")
	ErrTimeout       = errors.New("service was not ready in time")
)

// Target is the launched service as seen by a waiter.
type Target interface {
	Done() <-chan struct{}
	MatchOutput(re *regexp.Regexp) (string, bool)
}

type Waiter interface {
	Wait(ctx context.Context, t Target) error
}

// Delay blocks for a fixed duration and learns nothing about the service.
type Delay struct {
	Duration time.Duration
}

func (d Delay) Wait(ctx context.Context, _ Target) error {
	o11y.AddField(ctx, "ready_mode", "delay")

	timer := time.NewTimer(d.Duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// poll runs check until it succeeds, the service exits, or timeout passes.
func poll(ctx context.Context, t Target, timeout time.Duration, check func(context.Context) error) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempts := 0
	var lastErr error
	b := backoff.WithContext(backoff.NewConstantBackOff(pollInterval), pollCtx)
	err := backoff.Retry(func() error {
		select {
		case <-t.Done():
			return backoff.Permanent(ErrServiceExited)
		default:
		}

		attempts++
		err := check(pollCtx)
		if err != nil && pollCtx.Err() == nil {
			lastErr = err
		}
		return err
	}, b)
	o11y.AddField(ctx, "attempts", attempts)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrServiceExited):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		if lastErr != nil {
			return fmt.Errorf("%w after %s: %v", ErrTimeout, timeout, lastErr)
		}
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	default:
		return err
	}
}
