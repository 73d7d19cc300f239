package readiness

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/robotraconteur/svcharness/closer"
	"github.com/robotraconteur/svcharness/o11y"
)

// TCP is ready once a connection to Addr is accepted.
type TCP struct {
	Addr    string
	Timeout time.Duration
}

func (p TCP) Wait(ctx context.Context, t Target) error {
	o11y.AddField(ctx, "ready_mode", "tcp")
	o11y.AddField(ctx, "ready_target", p.Addr)

	d := net.Dialer{Timeout: time.Second}
	return poll(ctx, t, p.Timeout, func(ctx context.Context) (err error) {
		conn, err := d.DialContext(ctx, "tcp", p.Addr)
		if err != nil {
			return err
		}
		defer closer.ErrorHandler(conn, &err)
		return nil
	})
}

// HTTP is ready once a GET of URL answers 200.
type HTTP struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

func (p HTTP) Wait(ctx context.Context, t Target) error {
	o11y.AddField(ctx, "ready_mode", "http")
	o11y.AddField(ctx, "ready_target", p.URL)

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: time.Second}
	}
	return poll(ctx, t, p.Timeout, func(ctx context.Context) (err error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
		if err != nil {
			return err
		}
		res, err := client.Do(req)
		if err != nil {
			return err
		}
		defer closer.ErrorHandler(res.Body, &err)
		_, _ = io.Copy(io.Discard, res.Body)

		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("not ready: %s", res.Status)
		}
		return nil
	})
}
