package client

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/fs"

	"github.com/robotraconteur/svcharness/testing/testcontext"
	"github.com/robotraconteur/svcharness/testing/testprogs"
)

func TestRun(t *testing.T) {
	ctx := testcontext.Background()
	progs := testprogs.Build(t)

	t.Run("Success", func(t *testing.T) {
		out := &bytes.Buffer{}
		err := Run(ctx, Invocation{Path: progs.Client, Stdout: out})
		assert.NilError(t, err)
		assert.Check(t, cmp.Contains(out.String(), "client running in "+filepath.Dir(progs.Client)))
	})

	t.Run("Runs in the given directory", func(t *testing.T) {
		dir := fs.NewDir(t, "client-dir")
		out := &bytes.Buffer{}
		err := Run(ctx, Invocation{
			Path:   progs.Client,
			Dir:    dir.Path(),
			Args:   []string{"--touch", "done.txt"},
			Stdout: out,
		})
		assert.NilError(t, err)

		b, err := os.ReadFile(dir.Join("done.txt"))
		assert.NilError(t, err)
		assert.Check(t, strings.HasPrefix(string(b), dir.Path()))
	})

	t.Run("Non zero exit", func(t *testing.T) {
		err := Run(ctx, Invocation{
			Path:   progs.Client,
			Args:   []string{"--exit-code", "1"},
			Stdout: &bytes.Buffer{},
		})
		var failure *Failure
		assert.Assert(t, errors.As(err, &failure))
		assert.Check(t, cmp.Equal(failure.ExitCode, 1))
		assert.Check(t, cmp.Equal(failure.Path, progs.Client))
		assert.Check(t, cmp.ErrorContains(err, "exited with code 1"))
	})

	t.Run("Missing program", func(t *testing.T) {
		err := Run(ctx, Invocation{Path: filepath.Join(t.TempDir(), "missing")})
		var failure *Failure
		assert.Assert(t, errors.As(err, &failure))
		assert.Check(t, cmp.Equal(failure.ExitCode, -1))
		assert.Check(t, cmp.ErrorContains(err, "could not run"))
	})

	t.Run("No program", func(t *testing.T) {
		err := Run(ctx, Invocation{})
		assert.Check(t, cmp.ErrorContains(err, "no client given"))
	})

	t.Run("Canceled", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := Run(cctx, Invocation{
			Path:   progs.Client,
			Args:   []string{"--sleep", "1m"},
			Stdout: &bytes.Buffer{},
		})
		assert.Check(t, errors.Is(err, context.DeadlineExceeded))
		assert.Check(t, time.Since(start) < 30*time.Second)
	})
}

func TestRun_Interpreter(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	ctx := testcontext.Background()

	dir := fs.NewDir(t, "scripts",
		fs.WithFile("client.sh", "pwd\necho \"args: $*\"\nexit ${CLIENT_EXIT:-0}\n"),
	)

	t.Run("Script with arguments", func(t *testing.T) {
		out := &bytes.Buffer{}
		err := Run(ctx, Invocation{
			Path:        dir.Join("client.sh"),
			Interpreter: "sh",
			Args:        []string{"a", "b"},
			Stdout:      out,
		})
		assert.NilError(t, err)
		assert.Check(t, cmp.Contains(out.String(), "args: a b"))
		assert.Check(t, cmp.Contains(out.String(), filepath.Base(dir.Path())))
	})

	t.Run("Script failure", func(t *testing.T) {
		err := Run(ctx, Invocation{
			Path:        dir.Join("client.sh"),
			Interpreter: "sh",
			Env:         []string{"CLIENT_EXIT=5"},
			Stdout:      &bytes.Buffer{},
		})
		var failure *Failure
		assert.Assert(t, errors.As(err, &failure))
		assert.Check(t, cmp.Equal(failure.ExitCode, 5))
	})
}
