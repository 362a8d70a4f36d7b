package ingest

// State is the connection state of one stream runner.
type State int32

const (
	// StateDisconnected is the initial state before the first connect.
	StateDisconnected State = iota
	// StateConnecting means a connection attempt is in flight.
	StateConnecting
	// StateConnected means records are being read and republished.
	StateConnected
	// StateReconnecting means the runner is waiting out a backoff delay.
	StateReconnecting
	// StateGivingUp means the attempt budget is exhausted; terminal shutdown
	// is in progress.
	StateGivingUp
	// StateStopped is terminal: either a giving-up runner or a cancelled one.
	StateStopped
)

// String returns the state label.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateGivingUp:
		return "giving_up"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
