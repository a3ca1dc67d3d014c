package client

// State is the lifecycle phase of a Client.
type State int

const (
	Init State = iota
	Connecting
	Authenticating
	Ready
	Restarting
	// LoginFailed is terminal: the server rejected the login or capabilities.
	LoginFailed
	Stopped
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Ready:
		return "ready"
	case Restarting:
		return "restarting"
	case LoginFailed:
		return "login_failed"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}
