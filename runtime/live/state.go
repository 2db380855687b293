package live

// State is the lifecycle state of a session.
type State int

// Session states. Failed is absorbing.
const (
	StateIdle State = iota
	StateConnecting
	StateAwaitingSetupAck
	StateActive
	StateClosing
	StateClosed
	StateFailed
)

var stateNames = [...]string{
	StateIdle:             "idle",
	StateConnecting:       "connecting",
	StateAwaitingSetupAck: "awaiting_setup_ack",
	StateActive:           "active",
	StateClosing:          "closing",
	StateClosed:           "closed",
	StateFailed:           "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// starting reports whether a connection attempt is in progress or live.
func (s State) starting() bool {
	return s == StateConnecting || s == StateAwaitingSetupAck || s == StateActive
}
