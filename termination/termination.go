// Package termination turns SIGINT and SIGTERM sent to the harness into an error,
// so a run in progress can release its service before the harness exits.
package termination

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/robotraconteur/svcharness/o11y"
)

var ErrTerminated = errors.New("terminated")

// Handle blocks until the harness is asked to stop, returning ErrTerminated, or
// ctx is done, returning nil.
func Handle(ctx context.Context) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	return wait(ctx, quit)
}

func wait(ctx context.Context, quit <-chan os.Signal) error {
	select {
	case sig := <-quit:
		o11y.Log(ctx, "termination: signal received", o11y.Field("signal", sig.String()))
		return ErrTerminated
	case <-ctx.Done():
		return nil
	}
}

var handler = Handle

// Run calls f while watching for termination. A termination cancels the context
// given to f and Run returns ErrTerminated once f has returned.
func Run(ctx context.Context, f func(context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	handlerCtx, stopHandler := context.WithCancel(ctx)

	g.Go(func() error {
		defer stopHandler()
		return f(ctx)
	})
	g.Go(func() error {
		return handler(handlerCtx)
	})
	return g.Wait()
}
