package comm

import "github.com/mdx/remotecontrol/action"

type ConnectionState int32

// ConnectionState values
const (
	Disconnected ConnectionState = iota
	Searching
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Searching:
		return "searching"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Message is one inbound line resolved to the action it triggers.
type Message struct {
	Action action.Action
	Arg    action.Arg
	Ignore bool
}
