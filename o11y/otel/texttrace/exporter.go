// Package texttrace is a span exporter for otel that writes one line per span to a console
package texttrace

import (
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var _ trace.SpanExporter = &Exporter{}

type Option func(*Exporter)

// WithoutColour disables the ANSI colouring of trace ids, span names and errors.
func WithoutColour() Option {
	return func(e *Exporter) {
		e.colour = false
	}
}

// WithoutTimestamps drops the wall clock and duration columns, which keeps output stable in tests.
func WithoutTimestamps() Option {
	return func(e *Exporter) {
		e.timestamps = false
	}
}

// New creates an Exporter writing to w.
func New(w io.Writer, opts ...Option) *Exporter {
	e := &Exporter{
		w:          w,
		timestamps: true,
		colour:     true,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Exporter is an implementation of trace.SpanExporter that writes spans as text.
type Exporter struct {
	timestamps bool
	colour     bool

	mu      sync.Mutex
	w       io.Writer
	stopped bool
}

// ExportSpans writes each span as a line of text.
func (e *Exporter) ExportSpans(_ context.Context, spans []trace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return nil
	}

	for _, stub := range tracetest.SpanStubsFromReadOnlySpans(spans) {
		stub := stub
		if _, err := e.w.Write(e.format(&stub)); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops any further output.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	return ctx.Err()
}

func (e *Exporter) format(ev *tracetest.SpanStub) []byte {
	buf := new(bytes.Buffer)
	if e.timestamps {
		_, _ = fmt.Fprintf(buf, "%s %s %.3fms ",
			ev.EndTime.Format("15:04:05"),
			e.applyColour(formatTraceID(ev.SpanContext.TraceID().String())),
			float64(ev.EndTime.Sub(ev.StartTime).Microseconds())/1000,
		)
	}
	buf.WriteString(e.applyColour(ev.Name))

	data := map[string]string{}
	for _, a := range ev.Attributes {
		data[string(a.Key)] = a.Value.Emit()
	}

	for _, k := range sortedKeys(ev.Attributes) {
		if exclude(k) {
			continue
		}
		label := k
		if k == "error" && e.colour {
			label = errorHighlight(k)
		}
		_, _ = fmt.Fprintf(buf, " %s=%s", label, data[k])
	}
	buf.WriteString("\n")
	return buf.Bytes()
}

func exclude(k string) bool {
	switch k {
	case "version", "service", "run_id", "duration_ms":
		return true
	}
	return strings.HasPrefix(k, "meta.")
}

func (e *Exporter) applyColour(value string) string {
	if !e.colour {
		return value
	}

	i := crc32.Checksum([]byte(value), crc32.IEEETable) % uint32(len(colours))
	return fmt.Sprintf("\033[1;38;5;%dm%s\033[0m", colours[i], value)
}

func errorHighlight(s string) string {
	return fmt.Sprintf("\033[1;37;41m%s\033[0m", s)
}

// colours is all ansi colour codes that look ok against black
var colours = []uint8{
	9, 10, 11, 12, 13, 14, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32, 33, 34, 35, 36, 37, 38, 39, 40, 41, 42, 43,
	44, 45, 46, 47, 48, 49, 50, 51, 63, 64, 65, 66, 67, 68, 69, 70, 71, 72, 73, 74, 75, 76, 77, 78, 79, 80, 81, 82, 83,
	84, 85, 86, 87, 92, 93, 94, 95, 96, 97, 98, 99, 100, 101, 102, 103, 104, 105, 106, 107, 108, 109, 110, 111, 112,
	113, 114, 115, 116, 117, 118, 119, 120, 121, 122, 123, 124, 125, 126, 127, 128, 129, 130, 131, 132, 133, 134, 135,
	136, 137, 138, 139, 140, 141, 142, 143, 144, 146, 147, 148, 149, 150, 151, 152, 153, 154, 155, 156, 157, 158,
	159, 160, 161, 162, 163, 164, 165, 166, 167, 168, 169, 170, 171, 172, 173, 174, 175, 176, 177, 178, 179, 180, 181,
	182, 183, 184, 185, 186, 187, 188, 189, 190, 191, 192, 193, 194, 195, 196, 197, 198, 199, 200, 201, 202, 203, 204,
	205, 206, 207, 208, 209, 210, 211, 212, 213, 214, 215, 216, 217, 218, 219, 220, 221, 222, 223, 224, 225, 226, 227,
	228, 229, 230, 231,
}

func formatTraceID(raw string) string {
	return raw[len(raw)-5:]
}

func sortedKeys(m []attribute.KeyValue) []string {
	keys := make([]string, 0, len(m))
	for _, k := range m {
		keys = append(keys, string(k.Key))
	}
	sort.Strings(keys)
	return keys
}
