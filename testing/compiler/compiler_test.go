package compiler

import (
	"context"
	"os"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/icmd"
)

func TestCompiler_Compile(t *testing.T) {
	c := New()

	binary := ""
	t.Cleanup(func() {
		c.Cleanup()
		_, err := os.Stat(binary)
		assert.Check(t, os.IsNotExist(err))
	})

	assert.Assert(t, t.Run("Compile binary", func(t *testing.T) {
		var err error
		binary, err = c.Compile(context.Background(), Work{
			Name:   "client",
			Target: "../..",
			Source: "./internal/testclient",
		})
		assert.Assert(t, err)
		_, err = os.Stat(binary)
		assert.Check(t, err)
	}))

	t.Run("Run binary", func(t *testing.T) {
		res := icmd.RunCommand(binary, "--exit-code", "4")
		res.Assert(t, icmd.Expected{
			ExitCode: 4,
			Out:      "client running in",
		})
	})
}
