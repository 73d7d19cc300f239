package process

import "time"

type State int

const (
	Spawned State = iota + 1
	Running
	Signaled
	// Exited is the only terminal state.
	Exited
)

func (s State) String() string {
	switch s {
	case Spawned:
		return "spawned"
	case Running:
		return "running"
	case Signaled:
		return "signaled"
	case Exited:
		return "exited"
	}
	return "unknown"
}

// next holds the single state each state may move to.
var next = map[State]State{
	Spawned:  Running,
	Running:  Signaled,
	Signaled: Exited,
}

type Transition struct {
	From State
	To   State
	At   time.Time
}
