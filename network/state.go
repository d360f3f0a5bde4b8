package network

// State is the connectivity state machine's current mode. Exactly one state is
// active at a time; transitions happen only inside Manager.Update.
type State int

const (
	// StateInit is the pre-Begin state.
	StateInit State = iota
	// StateStaConnecting means a station-mode association attempt is running.
	StateStaConnecting
	// StateOnline means the gateway is associated to an upstream network.
	// Internet reachability is tracked separately and may still be false.
	StateOnline
	// StateApMode means the gateway hosts its own access point as a fallback.
	StateApMode
)

// String returns the state's log name. A total mapping, not a positional
// lookup, so reordering the constants cannot mislabel transitions.
func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateStaConnecting:
		return "STA_CONNECTING"
	case StateOnline:
		return "ONLINE"
	case StateApMode:
		return "AP_MODE"
	default:
		return "UNKNOWN"
	}
}
