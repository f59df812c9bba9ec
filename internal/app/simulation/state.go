package simulation

// State is the run loop lifecycle: Idle → Running → ShuttingDown → Terminated.
type State int32

const (
	Idle State = iota
	Running
	ShuttingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}
