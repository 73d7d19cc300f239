// Package testprogs builds the fake service and client programs used by tests.
package testprogs

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/robotraconteur/svcharness/testing/compiler"
)

type Programs struct {
	Service string
	Client  string
}

// Build compiles both programs into a directory removed at the end of the test.
func Build(t testing.TB) Programs {
	t.Helper()

	p := compiler.NewParallel(2)
	t.Cleanup(p.Cleanup)

	var progs Programs
	root := moduleRoot()
	p.Add(compiler.Work{
		Result: &progs.Service,
		Name:   "testservice",
		Target: root,
		Source: "./internal/testservice",
	})
	p.Add(compiler.Work{
		Result: &progs.Client,
		Name:   "testclient",
		Target: root,
		Source: "./internal/testclient",
	})

	assert.NilError(t, p.Run(context.Background()))
	return progs
}

func moduleRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..")
}
