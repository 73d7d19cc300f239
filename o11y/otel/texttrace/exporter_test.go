package texttrace

import (
	"bytes"
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestExporter(t *testing.T) {
	ctx := context.Background()
	buf := &bytes.Buffer{}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(New(buf, WithoutColour(), WithoutTimestamps()))),
	)
	tracer := tp.Tracer("test")

	_, span := tracer.Start(ctx, "harness: shutdown")
	span.SetAttributes(
		attribute.Int("app.exit_code", 3),
		attribute.String("run_id", "hidden"),
		attribute.String("result", "success"),
	)
	span.End()

	_, span = tracer.Start(ctx, "harness: client")
	span.SetAttributes(attribute.String("error", "client exited with code 1"))
	span.End()

	assert.NilError(t, tp.Shutdown(ctx))

	assert.Check(t, cmp.Equal(buf.String(),
		"harness: shutdown app.exit_code=3 result=success\n"+
			"harness: client error=client exited with code 1\n"))
}

func TestExporter_Colour(t *testing.T) {
	ctx := context.Background()
	buf := &bytes.Buffer{}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(New(buf))),
	)
	_, span := tp.Tracer("test").Start(ctx, "harness: launch")
	span.SetAttributes(attribute.String("error", "no such file"))
	span.End()
	assert.NilError(t, tp.Shutdown(ctx))

	assert.Check(t, cmp.Contains(buf.String(), errorHighlight("error")+"=no such file"))
	assert.Check(t, cmp.Contains(buf.String(), "\033[1;38;5;"))
}

func TestExporter_StoppedWritesNothing(t *testing.T) {
	buf := &bytes.Buffer{}
	e := New(buf)
	assert.NilError(t, e.Shutdown(context.Background()))
	assert.NilError(t, e.ExportSpans(context.Background(), nil))
	assert.Check(t, cmp.Equal(buf.Len(), 0))
}
