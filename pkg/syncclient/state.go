package syncclient

// State is the transport state of an Agent.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StatePushActive
	StatePollingActive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StatePushActive:
		return "push_active"
	case StatePollingActive:
		return "polling_active"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}
