package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/robotraconteur/svcharness/client"
	"github.com/robotraconteur/svcharness/o11y"
	"github.com/robotraconteur/svcharness/process"
)

// Run performs one run. The returned Result is never nil and holds whatever was
// observed, including when err is not nil.
func Run(ctx context.Context, cfg Config) (res *Result, err error) {
	cfg = cfg.withDefaults()
	res = &Result{RunID: cfg.RunID}
	if res.RunID == "" {
		res.RunID = uuid.NewString()
	}

	err = cfg.Validate()
	if err != nil {
		return res, fmt.Errorf("invalid config: %w", err)
	}

	ctx, span := o11y.StartSpan(ctx, "harness: run")
	defer o11y.End(span, &err)
	span.AddField("run_id", res.RunID)
	span.AddField("exit_policy", cfg.ExitPolicy.String())
	span.RecordMetric(o11y.Incr("harness.run", "result", "exit_policy"))
	span.RecordMetric(o11y.Gauge("harness.service_exit_code", "service_exit_code", "exit_policy"))

	o11y.Log(ctx, "harness: start",
		o11y.Field("run_id", res.RunID),
		o11y.Field("service", cfg.Service.Path),
		o11y.Field("service_dir", cfg.Service.Dir),
		o11y.Field("client", cfg.Client.Path),
		o11y.Field("client_dir", cfg.Client.Dir),
	)

	var svc *process.Service
	err = res.phase(ctx, "launch", func(ctx context.Context) (err error) {
		svc, err = process.Launch(ctx, cfg.Service)
		return err
	})
	if err != nil {
		return res, err
	}

	defer func() {
		// release even when ctx is canceled, that is when it matters most
		rctx := context.WithoutCancel(ctx)
		rerr := svc.Release(rctx, cfg.ReleaseTimeout)
		if rerr != nil {
			o11y.LogError(rctx, "harness: release", rerr)
		}
		res.fill(svc)
		span.AddField("forced", res.Forced)
		if res.ServiceExited {
			span.AddField("service_exit_code", res.ServiceExitCode)
		}
		// a terminated run is not a failure of the service, its output is noise
		if err != nil && !o11y.DontErrorTrace(err) {
			o11y.Log(rctx, "harness: service output",
				o11y.Field("output", res.Output),
				o11y.Field("output_dropped", res.OutputDropped),
			)
		}
	}()

	err = res.phase(ctx, "readiness", func(ctx context.Context) error {
		return cfg.Ready.Wait(ctx, svc)
	})
	if err != nil {
		return res, err
	}

	err = res.phase(ctx, "client", func(ctx context.Context) error {
		err := client.Run(ctx, cfg.Client)
		res.ClientCompleted = time.Now()
		return err
	})
	if err != nil {
		return res, err
	}

	err = res.phase(ctx, "shutdown", func(ctx context.Context) error {
		err := sleep(ctx, cfg.SettleDelay)
		if err != nil {
			return err
		}
		return svc.Stop(ctx, cfg.ShutdownTimeout)
	})
	if err != nil {
		return res, err
	}

	code, _ := svc.ExitCode()
	err = res.phase(ctx, "report", func(ctx context.Context) error {
		return Report(ctx, cfg.Stdout, cfg.ExitPolicy, code)
	})
	if o11y.IsWarning(err) {
		// recorded on the report span, the run itself succeeded
		return res, nil
	}
	return res, err
}

func (r *Result) phase(ctx context.Context, name string, f func(context.Context) error) (err error) {
	ctx, span := o11y.StartSpan(ctx, "harness: "+name)
	defer o11y.End(span, &err)
	span.AddField("phase", name)
	span.RecordMetric(o11y.Timing("harness.phase", "phase", "result"))

	start := time.Now()
	defer func() {
		r.Phases = append(r.Phases, Phase{
			Name:     name,
			Duration: time.Since(start),
			Result:   phaseResult(err),
		})
	}()
	return f(ctx)
}

func phaseResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case o11y.IsWarning(err):
		return "warning"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
