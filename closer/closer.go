/*
Package closer keeps the error from a deferred Close when nothing else failed.
*/
package closer

import (
	"errors"
	"io"
	"os"
)

// ErrorHandler closes c and stores its error in *in unless *in already holds
// one. Closing something already closed is not an error.
func ErrorHandler(c io.Closer, in *error) {
	cerr := c.Close()
	if errors.Is(cerr, os.ErrClosed) {
		return
	}
	if *in == nil {
		*in = cerr
	}
}
