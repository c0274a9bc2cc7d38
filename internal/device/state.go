package device

import "fmt"

// State is the lifecycle position of a Session.
//
//	Idle -> Connecting -> Connected -> Resolving -> Ready -> Disconnected
//
// Disconnected is terminal; any state may reach it.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateResolving
	StateReady
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateResolving:
		return "resolving"
	case StateReady:
		return "ready"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
