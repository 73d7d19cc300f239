package testcontext

import (
	"context"

	"github.com/robotraconteur/svcharness/config/o11y"
)

// ctx is a global singleton, initialised at package time so parallel tests share one provider
var ctx = newContext()

// Background returns a context for use in tests which contains a working o11y, so you get logs.
func Background() context.Context {
	return ctx
}

func newContext() context.Context {
	cx, _, _ := o11y.Setup(context.Background(), o11y.Config{
		Service:  "svcharness-test",
		Version:  "test",
		NoColour: true,
	})
	return cx
}
