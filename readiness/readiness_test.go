package readiness

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/robotraconteur/svcharness/internal/syncbuffer"
	"github.com/robotraconteur/svcharness/testing/testcontext"
)

type fakeTarget struct {
	out  syncbuffer.SyncBuffer
	done chan struct{}
	once sync.Once
}

func newTarget() *fakeTarget {
	return &fakeTarget{done: make(chan struct{})}
}

func (f *fakeTarget) Done() <-chan struct{} {
	return f.done
}

func (f *fakeTarget) MatchOutput(re *regexp.Regexp) (string, bool) {
	return f.out.MatchLine(re)
}

func (f *fakeTarget) exit() {
	f.once.Do(func() { close(f.done) })
}

func TestDelay(t *testing.T) {
	ctx := testcontext.Background()

	t.Run("Waits the full duration", func(t *testing.T) {
		start := time.Now()
		err := Delay{Duration: 100 * time.Millisecond}.Wait(ctx, newTarget())
		assert.NilError(t, err)
		assert.Check(t, time.Since(start) >= 100*time.Millisecond)
	})

	t.Run("Ignores the service exiting", func(t *testing.T) {
		target := newTarget()
		target.exit()
		err := Delay{Duration: 10 * time.Millisecond}.Wait(ctx, target)
		assert.Check(t, err)
	})

	t.Run("Canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := Delay{Duration: time.Hour}.Wait(cctx, newTarget())
		assert.Check(t, errors.Is(err, context.Canceled))
	})
}

func TestMarker(t *testing.T) {
	ctx := testcontext.Background()
	re := regexp.MustCompile(`^listening on \d+$`)

	t.Run("Ready once the marker is written", func(t *testing.T) {
		target := newTarget()
		_, _ = target.out.Write([]byte("starting\n"))
		go func() {
			time.Sleep(50 * time.Millisecond)
			_, _ = target.out.Write([]byte("listening on 4242\n"))
		}()

		err := Marker{Pattern: re, Timeout: 5 * time.Second}.Wait(ctx, target)
		assert.Check(t, err)
	})

	t.Run("Service exits first", func(t *testing.T) {
		target := newTarget()
		go func() {
			time.Sleep(50 * time.Millisecond)
			target.exit()
		}()

		err := Marker{Pattern: re, Timeout: 5 * time.Second}.Wait(ctx, target)
		assert.Check(t, errors.Is(err, ErrServiceExited))
	})

	t.Run("Timeout", func(t *testing.T) {
		err := Marker{Pattern: re, Timeout: 100 * time.Millisecond}.Wait(ctx, newTarget())
		assert.Check(t, errors.Is(err, ErrTimeout))
		assert.Check(t, cmp.ErrorContains(err, "ready marker not seen yet"))
	})
}

func TestTCP(t *testing.T) {
	ctx := testcontext.Background()

	t.Run("Ready once listening", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		assert.NilError(t, err)
		defer ln.Close()
		go func() {
			for {
				conn, err := ln.Accept()
				if err != nil {
					return
				}
				_ = conn.Close()
			}
		}()

		err = TCP{Addr: ln.Addr().String(), Timeout: 5 * time.Second}.Wait(ctx, newTarget())
		assert.Check(t, err)
	})

	t.Run("Nothing listening", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		assert.NilError(t, err)
		addr := ln.Addr().String()
		assert.NilError(t, ln.Close())

		err = TCP{Addr: addr, Timeout: 200 * time.Millisecond}.Wait(ctx, newTarget())
		assert.Check(t, errors.Is(err, ErrTimeout))
	})
}

func TestHTTP(t *testing.T) {
	ctx := testcontext.Background()

	t.Run("Ready after warming up", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		err := HTTP{URL: srv.URL, Timeout: 5 * time.Second}.Wait(ctx, newTarget())
		assert.Check(t, err)
		assert.Check(t, cmp.Equal(atomic.LoadInt32(&calls), int32(3)))
	})

	t.Run("Never ready", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		err := HTTP{URL: srv.URL, Timeout: 200 * time.Millisecond}.Wait(ctx, newTarget())
		assert.Check(t, errors.Is(err, ErrTimeout))
		assert.Check(t, cmp.ErrorContains(err, "503 Service Unavailable"))
	})

	t.Run("Parent canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		err := HTTP{URL: "http://127.0.0.1:1", Timeout: time.Second}.Wait(cctx, newTarget())
		assert.Check(t, errors.Is(err, context.Canceled))
	})
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		target  string
		want    Waiter
		wantErr string
	}{
		{
			name: "default is delay",
			want: Delay{Duration: 2 * time.Second},
		},
		{
			name: "delay",
			mode: "delay",
			want: Delay{Duration: 2 * time.Second},
		},
		{
			name:   "tcp",
			mode:   "tcp",
			target: "localhost:2354",
			want:   TCP{Addr: "localhost:2354", Timeout: 20 * time.Second},
		},
		{
			name:   "http",
			mode:   "http",
			target: "http://localhost:8080/ready",
			want:   HTTP{URL: "http://localhost:8080/ready", Timeout: 20 * time.Second},
		},
		{
			name:    "tcp without address",
			mode:    "tcp",
			wantErr: "needs an address",
		},
		{
			name:    "marker without pattern",
			mode:    "marker",
			wantErr: "needs a pattern",
		},
		{
			name:    "bad marker",
			mode:    "marker",
			target:  "(",
			wantErr: "bad ready marker",
		},
		{
			name:    "not http",
			mode:    "http",
			target:  "ftp://example.com",
			wantErr: "must be http or https",
		},
		{
			name:    "unknown",
			mode:    "smoke-signals",
			wantErr: `unknown ready mode "smoke-signals"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Parse(tt.mode, tt.target, DefaultDelay, DefaultTimeout)
			if tt.wantErr != "" {
				assert.Check(t, cmp.ErrorContains(err, tt.wantErr))
				return
			}
			assert.NilError(t, err)
			assert.Check(t, cmp.DeepEqual(w, tt.want))
		})
	}

	t.Run("marker", func(t *testing.T) {
		w, err := Parse("marker", "^ready$", DefaultDelay, time.Second)
		assert.NilError(t, err)
		m, ok := w.(Marker)
		assert.Assert(t, ok)
		assert.Check(t, cmp.Equal(m.Pattern.String(), "^ready$"))
		assert.Check(t, cmp.Equal(m.Timeout, time.Second))
	})
}
