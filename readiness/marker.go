package readiness

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/robotraconteur/svcharness/o11y"
)

var errNoMarker = errors.New("ready marker not seen yet")

// Marker is ready once a line of the service output matches Pattern.
type Marker struct {
	Pattern *regexp.Regexp
	Timeout time.Duration
}

func (m Marker) Wait(ctx context.Context, t Target) error {
	o11y.AddField(ctx, "ready_mode", "marker")
	o11y.AddField(ctx, "ready_target", m.Pattern.String())

	return poll(ctx, t, m.Timeout, func(context.Context) error {
		line, ok := t.MatchOutput(m.Pattern)
		if !ok {
			return errNoMarker
		}
		o11y.AddField(ctx, "ready_line", line)
		return nil
	})
}
