package harness

import (
	"time"

	"github.com/robotraconteur/svcharness/process"
)

type Phase struct {
	Name     string
	Duration time.Duration
	Result   string
}

// Result records what happened during one run, however far it got.
type Result struct {
	RunID string

	// ServiceExitCode is only meaningful when ServiceExited is set.
	ServiceExitCode int
	ServiceExited   bool
	// Forced is set when the service had to be killed.
	Forced      bool
	Transitions []process.Transition

	// Output is the tail of the service output, OutputDropped bytes were discarded before it.
	Output        string
	OutputDropped int64

	Phases          []Phase
	ClientCompleted time.Time
	SignaledAt      time.Time
}

func (r *Result) Phase(name string) (Phase, bool) {
	for _, p := range r.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return Phase{}, false
}

func (r *Result) fill(s *process.Service) {
	r.Transitions = s.Transitions()
	r.Forced = s.Forced()
	r.Output = s.Output()
	r.OutputDropped = s.OutputDropped()
	r.ServiceExitCode, r.ServiceExited = s.ExitCode()
	for _, t := range r.Transitions {
		if t.To == process.Signaled {
			r.SignaledAt = t.At
		}
	}
}
