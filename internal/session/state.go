package session

// State is the lifecycle position of a Session.
type State int32

const (
	Disconnected State = iota
	Connecting
	Subscribed
	Streaming
	Closed
	Faulted
)

var stateNames = [...]string{"Disconnected", "Connecting", "Subscribed", "Streaming", "Closed", "Faulted"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether the session loop has exited.
func (s State) Terminal() bool { return s == Closed || s == Faulted }
