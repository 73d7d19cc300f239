// Package client runs the client program against a ready service and waits for it.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/robotraconteur/svcharness/o11y"
)

type Invocation struct {
	// Path is the client program, or the script handed to Interpreter.
	Path string
	// Dir defaults to the directory holding Path.
	Dir string
	// Interpreter runs Path when set, for example python3.
	Interpreter string
	Args        []string
	// Env is added to the harness environment.
	Env []string

	// Stdout and Stderr default to the harness's own.
	Stdout io.Writer
	Stderr io.Writer
}

// Failure is returned when the client could not run or exited non zero.
type Failure struct {
	Path string
	// ExitCode is -1 when the client never ran.
	ExitCode int
	Err      error
}

func (f *Failure) Error() string {
	if f.ExitCode == -1 {
		return fmt.Sprintf("client %s could not run: %v", f.Path, f.Err)
	}
	return fmt.Sprintf("client %s exited with code %d", f.Path, f.ExitCode)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Run blocks until the client exits. Canceling ctx kills the client.
func Run(ctx context.Context, inv Invocation) (err error) {
	ctx, span := o11y.StartSpan(ctx, "client: run")
	defer o11y.End(span, &err)
	span.AddField("path", inv.Path)

	cmd, err := command(ctx, inv)
	if err != nil {
		return &Failure{Path: inv.Path, ExitCode: -1, Err: err}
	}
	span.AddField("dir", cmd.Dir)
	span.AddField("argv", cmd.Args)

	err = cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			span.AddField("exit_code", exitErr.ExitCode())
			return &Failure{Path: inv.Path, ExitCode: exitErr.ExitCode(), Err: err}
		}
		return &Failure{Path: inv.Path, ExitCode: -1, Err: err}
	}
	span.AddField("exit_code", 0)
	return nil
}

func command(ctx context.Context, inv Invocation) (*exec.Cmd, error) {
	if inv.Path == "" {
		return nil, errors.New("no client given")
	}

	path := inv.Path
	if strings.ContainsRune(path, filepath.Separator) || strings.ContainsRune(path, '/') {
		var err error
		path, err = filepath.Abs(path)
		if err != nil {
			return nil, err
		}
	}

	name := path
	args := inv.Args
	if inv.Interpreter != "" {
		name = inv.Interpreter
		args = append([]string{path}, inv.Args...)
	}

	dir := inv.Dir
	if dir == "" {
		dir = filepath.Dir(path)
	}

	//#nosec:G204 // running the client under test is the point
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	cmd.Stdout = inv.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = inv.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	return cmd, nil
}
