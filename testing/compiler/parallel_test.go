package compiler

import (
	"context"
	"os"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/icmd"
)

func TestParallel_Compile(t *testing.T) {
	c := NewParallel(2)

	var service, client string
	t.Cleanup(func() {
		c.Cleanup()

		_, err := os.Stat(service)
		assert.Check(t, os.IsNotExist(err))
		_, err = os.Stat(client)
		assert.Check(t, os.IsNotExist(err))
	})

	assert.Assert(t, t.Run("Compile binaries", func(t *testing.T) {
		c.Add(Work{
			Result: &service,
			Name:   "service",
			Target: "../..",
			Source: "./internal/testservice",
		})
		c.Add(Work{
			Result: &client,
			Name:   "client",
			Target: "../..",
			Source: "./internal/testclient",
		})

		err := c.Run(context.Background())
		assert.Check(t, err)
		_, err = os.Stat(service)
		assert.Check(t, err)
		_, err = os.Stat(client)
		assert.Check(t, err)
	}))

	t.Run("Run client", func(t *testing.T) {
		res := icmd.RunCommand(client)
		res.Assert(t, icmd.Success)
	})

	t.Run("Service rejects unknown flags", func(t *testing.T) {
		res := icmd.RunCommand(service, "--no-such-flag")
		assert.Check(t, res.ExitCode != 0)
		assert.Check(t, cmp.Contains(res.Stderr(), "unknown flag"))
	})
}
