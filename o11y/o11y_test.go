package o11y

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestFromContext(t *testing.T) {
	t.Run("no provider", func(t *testing.T) {
		ctx := context.Background()
		p := FromContext(ctx)
		assert.Check(t, cmp.Equal(p, Provider(defaultProvider)))
	})

	t.Run("with provider in context", func(t *testing.T) {
		expected := &fakeProvider{}
		ctx := WithProvider(context.Background(), expected)

		actual := FromContext(ctx)
		assert.Check(t, cmp.Equal(actual, Provider(expected)))
	})
}

func TestLog_WithoutProvider(t *testing.T) {
	ctx := context.Background()

	Log(ctx, "harness: start", Field("service", "/bin/true"))
}

func TestStartSpan_WithoutProvider(t *testing.T) {
	ctx := context.Background()

	nCtx, span := StartSpan(ctx, "harness: client")
	assert.Check(t, span != nil, "should have returned a noop span")
	assert.Check(t, cmp.Equal(ctx, nCtx), "should have returned ctx unmodified")
}

func TestAddResultToSpan(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		result  string
		error   string
		warning string
	}{
		{
			name:   "all-good",
			err:    nil,
			result: "success",
		},
		{
			name:   "normal-error",
			err:    errors.New("client exited with code 1"),
			result: "error",
			error:  "client exited with code 1",
		},
		{
			name:    "warning",
			err:     NewWarning("service return code: 3"),
			result:  "success",
			warning: "service return code: 3",
		},
		{
			name:    "wrapped-warning",
			err:     fmt.Errorf("report: %w", NewWarning("service return code: 3")),
			result:  "success",
			warning: "report: service return code: 3",
		},
		{
			name:    "context-canceled",
			err:     context.Canceled,
			result:  "canceled",
			warning: "context canceled",
		},
		{
			name:    "wrapped-deadline-exceeded",
			err:     fmt.Errorf("wrapped: %w", context.DeadlineExceeded),
			result:  "canceled",
			warning: "wrapped: context deadline exceeded",
		},
	}

	checkField := func(t *testing.T, span *fakeSpan, key, expect string) {
		t.Helper()
		if expect != "" {
			got, _ := span.fields[key].(string)
			assert.Check(t, cmp.Equal(expect, got))
		} else {
			_, ok := span.fields[key]
			assert.Check(t, !ok, key)
		}
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span := newFakeSpan()
			AddResultToSpan(span, tt.err)
			checkField(t, span, "result", tt.result)
			checkField(t, span, "error", tt.error)
			checkField(t, span, "warning", tt.warning)
		})
	}
}

func TestEnd(t *testing.T) {
	t.Run("has error", func(t *testing.T) {
		span := newFakeSpan()
		err := errors.New("oh no")
		End(span, &err)
		assert.Check(t, cmp.Equal(span.fields["error"], "oh no"))
		assert.Check(t, span.ended)
	})

	t.Run("nil error", func(t *testing.T) {
		span := newFakeSpan()
		var err error
		End(span, &err)
		assert.Check(t, cmp.Equal(span.fields["result"], "success"))
		assert.Check(t, span.ended)
	})

	t.Run("nil pointer", func(t *testing.T) {
		span := newFakeSpan()
		End(span, nil)
		assert.Check(t, cmp.Equal(span.fields["result"], "success"))
	})
}

func TestLogError(t *testing.T) {
	p := &fakeProvider{}
	ctx := WithProvider(context.Background(), p)

	LogError(ctx, "harness: release", errors.New("kill failed"), Field("pid", 42))

	assert.Check(t, cmp.Equal(p.span.fields["app.pid"], 42))
	assert.Check(t, cmp.Equal(p.span.fields["error"], "kill failed"))
	assert.Check(t, p.span.ended)
}

func newFakeSpan() *fakeSpan {
	return &fakeSpan{fields: map[string]interface{}{}}
}

type fakeSpan struct {
	Span
	fields map[string]interface{}
	ended  bool
}

func (s *fakeSpan) AddField(key string, val interface{}) {
	s.fields["app."+key] = val
}

func (s *fakeSpan) AddRawField(key string, val interface{}) {
	s.fields[key] = val
}

func (s *fakeSpan) End() {
	s.ended = true
}

type fakeProvider struct {
	Provider
	span *fakeSpan
}

func (p *fakeProvider) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	span := newFakeSpan()
	p.span = span
	return ctx, span
}
