package motorcan

// SessionState is the lifecycle state of a Session.
type SessionState int32

const (
	Idle SessionState = iota
	Starting
	Running
	Stopping
	Faulted
)

func (st SessionState) String() string {
	switch st {
	case Idle:
		return "Idle"
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Faulted:
		return "Fault"
	default:
		return "Unknown"
	}
}
