// Command svcharness runs a client program against a freshly launched service
// and reports how the service exited once interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log" //nolint:depguard // non-o11y log is allowed for a top-level fatal
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/robotraconteur/svcharness/client"
	configo11y "github.com/robotraconteur/svcharness/config/o11y"
	"github.com/robotraconteur/svcharness/harness"
	"github.com/robotraconteur/svcharness/o11y"
	"github.com/robotraconteur/svcharness/process"
	"github.com/robotraconteur/svcharness/promfile"
	"github.com/robotraconteur/svcharness/readiness"
	"github.com/robotraconteur/svcharness/termination"
)

// Set at build time with -ldflags.
var (
	Version = "dev"
	Date    = ""
)

type cli struct {
	Service           string   `required:"" env:"SVCHARNESS_SERVICE" help:"Service executable to launch"`
	ServiceDir        string   `name:"service-dir" env:"SVCHARNESS_SERVICE_DIR" help:"Service working directory, the service's own directory by default"`
	ServiceArgs       []string `name:"service-arg" env:"SVCHARNESS_SERVICE_ARGS" sep:"none" help:"Argument passed to the service, may be repeated"`
	EchoServiceOutput bool     `name:"echo-service-output" env:"SVCHARNESS_ECHO_SERVICE_OUTPUT" help:"Copy service output to stderr as it is written"`

	Client            string   `required:"" env:"SVCHARNESS_CLIENT" help:"Client program or script to run"`
	ClientDir         string   `name:"client-dir" env:"SVCHARNESS_CLIENT_DIR" help:"Client working directory, the client's own directory by default"`
	ClientInterpreter string   `name:"client-interpreter" env:"SVCHARNESS_CLIENT_INTERPRETER" help:"Program used to run the client, such as python3"`
	ClientArgs        []string `name:"client-arg" env:"SVCHARNESS_CLIENT_ARGS" sep:"none" help:"Argument passed to the client, may be repeated"`

	Ready        string        `enum:"delay,marker,tcp,http" default:"delay" env:"SVCHARNESS_READY" help:"How to tell the service is ready (${enum})"`
	ReadyTarget  string        `name:"ready-target" env:"SVCHARNESS_READY_TARGET" help:"Output pattern, host:port or URL for the marker, tcp and http modes"`
	ReadyDelay   time.Duration `name:"ready-delay" default:"2s" env:"SVCHARNESS_READY_DELAY" help:"Fixed wait used by the delay mode"`
	ReadyTimeout time.Duration `name:"ready-timeout" default:"20s" env:"SVCHARNESS_READY_TIMEOUT" help:"Give up on the marker, tcp and http modes after this long"`

	SettleDelay     time.Duration `name:"settle-delay" default:"500ms" env:"SVCHARNESS_SETTLE_DELAY" help:"Pause between the client finishing and interrupting the service"`
	ShutdownTimeout time.Duration `name:"shutdown-timeout" default:"10s" env:"SVCHARNESS_SHUTDOWN_TIMEOUT" help:"Kill the service if it has not exited this long after the interrupt, 0 waits forever"`
	ExitPolicy      string        `name:"exit-policy" enum:"lenient,strict" default:"lenient" env:"SVCHARNESS_EXIT_POLICY" help:"Whether a non zero service exit code fails the run (${enum})"`

	MetricsTextfile string `name:"metrics-textfile" env:"SVCHARNESS_METRICS_TEXTFILE" help:"Write the run outcome to this Prometheus textfile"`
	Statsd          string `name:"statsd" env:"SVCHARNESS_STATSD" help:"Address to send statsd metrics"`
	OtlpGrpc        string `name:"otlp-grpc" env:"SVCHARNESS_OTLP_GRPC" help:"OTLP gRPC collector host:port to send traces to"`
	NoColour        bool   `name:"no-colour" env:"SVCHARNESS_NO_COLOUR" help:"Plain console log output"`
}

func main() {
	err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	if err != nil && !errors.Is(err, termination.ErrTerminated) {
		log.Print("svcharness: ", err)
	}
	os.Exit(harness.ExitCode(err))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	c := cli{}
	parser, err := kong.New(&c,
		kong.Name("svcharness"),
		kong.Description("Run a client against a freshly launched service."),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		return err
	}
	_, err = parser.Parse(args)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	ctx, o11yCleanup, err := configo11y.Setup(ctx, configo11y.Config{
		Service:         "svcharness",
		Version:         Version,
		RunID:           runID,
		Writer:          stderr,
		NoColour:        c.NoColour,
		GrpcHostAndPort: c.OtlpGrpc,
		Statsd:          c.Statsd,
		StatsNamespace:  "svcharness.",
	})
	if err != nil {
		return err
	}
	defer o11yCleanup(ctx)

	ctx, runSpan := o11y.StartSpan(ctx, "main: run")
	defer o11y.End(runSpan, &err)

	o11y.Log(ctx, "starting svcharness",
		o11y.Field("version", Version),
		o11y.Field("date", Date),
	)

	cfg, err := c.config(runID, stdout, stderr)
	if err != nil {
		return err
	}

	var res *harness.Result
	err = termination.Run(ctx, func(ctx context.Context) error {
		var runErr error
		res, runErr = harness.Run(ctx, cfg)
		return runErr
	})

	if c.MetricsTextfile != "" {
		werr := promfile.Write(c.MetricsTextfile, res, err)
		if werr != nil {
			o11y.LogError(ctx, "main: metrics textfile", werr)
		}
	}
	return err
}

func (c cli) config(runID string, stdout, stderr io.Writer) (harness.Config, error) {
	ready, err := readiness.Parse(c.Ready, c.ReadyTarget, c.ReadyDelay, c.ReadyTimeout)
	if err != nil {
		return harness.Config{}, err
	}
	policy, err := harness.ParseExitPolicy(c.ExitPolicy)
	if err != nil {
		return harness.Config{}, err
	}

	var echo io.Writer
	if c.EchoServiceOutput {
		echo = stderr
	}

	cfg := harness.Config{
		Service: process.Spec{
			Path: c.Service,
			Dir:  c.ServiceDir,
			Args: c.ServiceArgs,
			Echo: echo,
		},
		Client: client.Invocation{
			Path:        c.Client,
			Dir:         c.ClientDir,
			Interpreter: c.ClientInterpreter,
			Args:        c.ClientArgs,
			Stdout:      stdout,
			Stderr:      stderr,
		},
		Ready:           ready,
		SettleDelay:     c.SettleDelay,
		ShutdownTimeout: c.ShutdownTimeout,
		ExitPolicy:      policy,
		Stdout:          stdout,
		RunID:           runID,
	}
	err = cfg.Validate()
	if err != nil {
		return harness.Config{}, fmt.Errorf("invalid arguments: %w", err)
	}
	return cfg, nil
}
