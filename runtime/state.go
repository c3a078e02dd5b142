package runtime

// State is the lifecycle of a Runtime's entry point.
type State int

const (
	NotStarted State = iota
	Running
	Exited
	Trapped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Running:
		return "running"
	case Exited:
		return "exited"
	case Trapped:
		return "trapped"
	default:
		return "unknown"
	}
}
