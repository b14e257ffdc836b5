package controller

// State is the phase of the current deployment attempt.
type State int

const (
	Idle State = iota
	Deploying
	Polling
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Deploying:
		return "deploying"
	case Polling:
		return "polling"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further automatic action follows s.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// Snapshot is the state exposed to the presentation layer.
type Snapshot struct {
	State    State
	Progress int
	Status   string
	// Err is set in the Failed state.
	Err error
	// Attempt increments on every Deploy call.
	Attempt uint64
}
