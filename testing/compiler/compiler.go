package compiler

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

type Compiler struct {
	dir string
}

func New() *Compiler {
	tempDir, err := os.MkdirTemp("", "svcharness-tests")
	if err != nil {
		panic(err)
	}

	return &Compiler{
		dir: tempDir,
	}
}

func (c *Compiler) Dir() string {
	return c.dir
}

func (c *Compiler) Cleanup() {
	_ = os.RemoveAll(c.dir)
}

type Work struct {
	// Name of the produced binary.
	Name string
	// Target is the directory the build runs in, usually the module root.
	Target string
	// Source is the main package, relative to Target.
	Source      string
	Environment []string

	// Result receives the binary path when set.
	Result *string
}

// Compile a binary for testing into the compiler's temporary directory.
func (c *Compiler) Compile(ctx context.Context, work Work) (string, error) {
	cwd, err := filepath.Abs(work.Target)
	if err != nil {
		return "", err
	}

	goos := runtime.GOOS
	for _, e := range work.Environment {
		if v, ok := strings.CutPrefix(e, "GOOS="); ok {
			goos = v
		}
	}

	path := binaryPath(work.Name, c.dir, goos)
	// #nosec - building test programs is the point
	cmd := exec.CommandContext(ctx, goPath(), "build",
		"-o", path,
		work.Source,
	)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	cmd.Env = append(cmd.Env, work.Environment...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err = cmd.Run()
	if err != nil {
		return "", err
	}

	if work.Result != nil {
		*work.Result = path
	}
	return path, nil
}

func goPath() string {
	goroot := os.Getenv("GOROOT")
	if goroot == "" {
		return "go"
	}
	return filepath.Join(goroot, "bin", "go")
}

func binaryPath(name, dir, goos string) string {
	path := filepath.Join(dir, name)
	if goos == "windows" {
		return path + ".exe"
	}
	return path
}
