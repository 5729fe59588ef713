package action

import "strings"

type Action int

// Action values
const (
	invalid Action = iota
	DetectedRemote
	Activate
	Deactivate
	Pause
	Dispatch
	Reset
	EmergencyStop
	Intensity
	Payload
	ShowParks
	ScrollParks
)

var names = map[Action]string{
	DetectedRemote: "detected_remote",
	Activate:       "activate",
	Deactivate:     "deactivate",
	Pause:          "pause",
	Dispatch:       "dispatch",
	Reset:          "reset",
	EmergencyStop:  "emergency_stop",
	Intensity:      "intensity",
	Payload:        "payload",
	ShowParks:      "show_parks",
	ScrollParks:    "scroll_parks",
}

// All lists every action in declaration order.
func All() []Action {
	all := make([]Action, 0, len(names))
	for a := DetectedRemote; a <= ScrollParks; a++ {
		all = append(all, a)
	}
	return all
}

func (a Action) String() string {
	if name, ok := names[a]; ok {
		return name
	}
	return "invalid"
}

// Parse maps a wire name to its action. Names are case sensitive.
func Parse(name string) (Action, bool) {
	name = strings.TrimSpace(name)
	for a, n := range names {
		if n == name {
			return a, true
		}
	}
	return invalid, false
}
