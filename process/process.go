package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/robotraconteur/svcharness/closer"
	"github.com/robotraconteur/svcharness/internal/syncbuffer"
	"github.com/robotraconteur/svcharness/o11y"
)

// pipeDrainDelay bounds how long the reaper waits for output copying once the
// service has exited, in case a grandchild still holds the pipes open.
const pipeDrainDelay = time.Second

// OutputLimit is how much of the most recent service output is kept.
const OutputLimit = 4 << 20

type Spec struct {
	// Path is the service executable. A bare name is looked up on PATH.
	Path string
	// Dir is the working directory, the directory holding Path when empty.
	Dir  string
	Args []string
	// Env is added to the harness environment.
	Env []string
	// Echo also receives everything the service writes, when set.
	Echo io.Writer
}

type Service struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	output *syncbuffer.SyncBuffer

	done chan struct{}

	mu          sync.Mutex
	state       State
	transitions []Transition
	exitCode    int
	forced      bool
}

// Launch starts the service. A failure to start is always a *LaunchError.
func Launch(ctx context.Context, spec Spec) (_ *Service, err error) {
	ctx, span := o11y.StartSpan(ctx, "process: launch")
	defer o11y.End(span, &err)
	span.AddField("path", spec.Path)

	path, err := resolve(spec.Path)
	if err != nil {
		return nil, &LaunchError{Path: spec.Path, Err: err}
	}

	dir := spec.Dir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	span.AddField("dir", dir)

	//#nosec:G204 // running the service under test is the point
	cmd := exec.Command(path, spec.Args...)
	cmd.Dir = dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.WaitDelay = pipeDrainDelay

	s := &Service{
		cmd:    cmd,
		output: &syncbuffer.SyncBuffer{Limit: OutputLimit},
		done:   make(chan struct{}),
	}

	var out io.Writer = s.output
	if spec.Echo != nil {
		out = io.MultiWriter(s.output, spec.Echo)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	s.stdin, err = cmd.StdinPipe()
	if err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}

	s.setState(Spawned)
	err = cmd.Start()
	if err != nil {
		_ = s.stdin.Close()
		return nil, &LaunchError{Path: path, Err: err}
	}
	s.transition(Running)
	span.AddField("pid", cmd.Process.Pid)

	go s.reap()

	o11y.Log(ctx, "process: running",
		o11y.Field("path", path),
		o11y.Field("pid", cmd.Process.Pid),
	)
	return s, nil
}

// resolve finds the executable and makes it absolute, since a relative path
// would otherwise be taken relative to the working directory.
func resolve(path string) (string, error) {
	if path == "" {
		return "", errors.New("no executable given")
	}
	found, err := exec.LookPath(path)
	if err != nil {
		return "", err
	}
	if filepath.Base(path) == path {
		return found, nil
	}
	return filepath.Abs(found)
}

func (s *Service) reap() {
	// the error only repeats what ProcessState says, or that output copying was cut short
	_ = s.cmd.Wait()

	s.mu.Lock()
	if ps := s.cmd.ProcessState; ps != nil {
		s.exitCode = exitCode(ps)
	}
	s.mu.Unlock()

	close(s.done)
}

// Done is closed as soon as the process has exited, whatever the state machine says.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

func (s *Service) Pid() int {
	return s.cmd.Process.Pid
}

// Output is what the service has written to stdout and stderr so far, the last
// OutputLimit bytes of it for a chatty service.
func (s *Service) Output() string {
	return s.output.String()
}

// OutputDropped is how many bytes of early output were discarded.
func (s *Service) OutputDropped() int64 {
	return s.output.Dropped()
}

// MatchOutput returns the first output line matching re.
func (s *Service) MatchOutput(re *regexp.Regexp) (string, bool) {
	return s.output.MatchLine(re)
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transitions returns a copy of every state change so far, oldest first.
func (s *Service) Transitions() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := make([]Transition, len(s.transitions))
	copy(ts, s.transitions)
	return ts
}

// ExitCode is only available once the service is Exited.
func (s *Service) ExitCode() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Exited {
		return 0, false
	}
	return s.exitCode, true
}

// Forced reports whether the service had to be killed.
func (s *Service) Forced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forced
}

// Signal sends the graceful interrupt. It may only be sent once, to a running service.
func (s *Service) Signal() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return fmt.Errorf("%w: %s", ErrNotRunning, s.state)
	}

	err := interrupt(s.cmd.Process)
	// a service that already died still counts as signaled, its exit code is collected by Wait
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to SIGINT: %w", err)
	}
	s.transitionLocked(Signaled)
	return nil
}

// Wait blocks until a signaled service has exited and returns its exit code.
func (s *Service) Wait(ctx context.Context) (int, error) {
	if st := s.State(); st != Signaled {
		return 0, fmt.Errorf("%w: %s", ErrNotSignaled, st)
	}

	select {
	case <-s.done:
	default:
		select {
		case <-s.done:
		case <-ctx.Done():
			// the service may have exited just as ctx ended
			select {
			case <-s.done:
			default:
				return 0, ctx.Err()
			}
		}
	}

	s.transition(Exited)
	code, _ := s.ExitCode()
	return code, nil
}

// Stop interrupts the service and waits for it to exit. With a timeout above zero a
// service still running when it expires is killed and ErrShutdownTimeout returned;
// otherwise the wait only ends with the process or ctx.
func (s *Service) Stop(ctx context.Context, timeout time.Duration) (err error) {
	ctx, span := o11y.StartSpan(ctx, "process: stop")
	defer o11y.End(span, &err)
	span.AddField("pid", s.Pid())
	span.AddField("timeout", timeout)

	err = s.Signal()
	if err != nil {
		return err
	}

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	code, err := s.Wait(waitCtx)
	switch {
	case err == nil:
		span.AddField("exit_code", code)
		return nil
	case ctx.Err() != nil:
		s.kill(ctx)
		return ctx.Err()
	default:
		if !s.kill(ctx) {
			// exited on its own between the timeout and the kill
			code, _ := s.ExitCode()
			span.AddField("exit_code", code)
			return nil
		}
		return fmt.Errorf("%w within %s", ErrShutdownTimeout, timeout)
	}
}

// Release guarantees the service is no longer running and its stdin is closed.
// A service that was never signaled is stopped with the grace timeout first.
func (s *Service) Release(ctx context.Context, grace time.Duration) error {
	var errs []error

	switch s.State() {
	case Running:
		o11y.Log(ctx, "process: releasing running service", o11y.Field("pid", s.Pid()))
		err := s.Stop(ctx, grace)
		if err != nil {
			errs = append(errs, err)
		}
		if s.State() == Running {
			// the interrupt could not be delivered at all
			s.mu.Lock()
			s.forced = true
			s.mu.Unlock()
			_ = s.cmd.Process.Kill()
			<-s.done
		}
	case Signaled:
		s.kill(ctx)
	}

	var closeErr error
	closer.ErrorHandler(s.stdin, &closeErr)
	if closeErr != nil {
		errs = append(errs, fmt.Errorf("close stdin: %w", closeErr))
	}
	return errors.Join(errs...)
}

// kill forcibly ends a signaled service and waits for it to be reaped. It
// reports false when the service had already exited.
func (s *Service) kill(ctx context.Context) (forced bool) {
	defer s.transition(Exited)

	select {
	case <-s.done:
		return false
	default:
	}

	err := s.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		<-s.done
		return false
	}
	if err != nil {
		o11y.LogError(ctx, "process: kill", err, o11y.Field("pid", s.Pid()))
	}
	s.mu.Lock()
	s.forced = true
	s.mu.Unlock()
	<-s.done
	return true
}

func (s *Service) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *Service) transition(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitionLocked(to)
}

func (s *Service) transitionLocked(to State) {
	if next[s.state] != to {
		return
	}
	s.transitions = append(s.transitions, Transition{From: s.state, To: to, At: time.Now()})
	s.state = to
}
