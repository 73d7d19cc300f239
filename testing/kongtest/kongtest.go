// Package kongtest renders and parses kong command lines inside tests.
package kongtest

import (
	"bytes"
	"testing"

	"github.com/alecthomas/kong"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

// Help returns the --help output for cli. The cli struct is left holding its defaults.
func Help(t *testing.T, cli interface{}, options ...kong.Option) string {
	t.Helper()

	w := bytes.NewBuffer(nil)
	rc := -1
	options = append(options,
		kong.Name("test-app"),
		kong.Writers(w, w),
		kong.Exit(func(i int) {
			rc = i
		}),
	)
	app, err := kong.New(cli, options...)
	assert.Assert(t, err)

	_, err = app.Parse([]string{"--help"})
	assert.Check(t, err)
	assert.Check(t, cmp.Equal(0, rc))

	return w.String()
}

// Parse fills cli from args, with the environment set by the caller via t.Setenv.
func Parse(t *testing.T, cli interface{}, args ...string) error {
	t.Helper()

	w := bytes.NewBuffer(nil)
	app, err := kong.New(cli,
		kong.Name("test-app"),
		kong.Writers(w, w),
		kong.Exit(func(int) {}),
	)
	assert.Assert(t, err)

	_, err = app.Parse(args)
	return err
}
