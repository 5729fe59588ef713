package local

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mdx/remotecontrol/action"
	"github.com/mdx/remotecontrol/gpio"
)

var ErrUnknownProfile = errors.New("unknown wiring profile")

type Profile int

// Profile values
const (
	DualResetPCB Profile = iota
	SingleResetPCB
	WiredSwitches
)

// Pins assigns a physical pin to every logical input of the panel.
type Pins struct {
	Dispatch      int
	Pause         int
	Reset         int
	Activate      int
	EncoderA      int
	EncoderB      int
	EncoderButton int
}

var profiles = map[Profile]struct {
	name string
	pins Pins
}{
	DualResetPCB: {"dual_reset_pcb_pins", Pins{
		Dispatch: 18, Pause: 15, Reset: 27, Activate: 24,
		EncoderA: 4, EncoderB: 14, EncoderButton: 17,
	}},
	SingleResetPCB: {"single_reset_pcb_pins", Pins{
		Dispatch: 18, Pause: 17, Reset: 23, Activate: 22,
		EncoderA: 3, EncoderB: 4, EncoderButton: 2,
	}},
	WiredSwitches: {"wired_switch_pins", Pins{
		Dispatch: 5, Pause: 6, Reset: 13, Activate: 19,
		EncoderA: 9, EncoderB: 11, EncoderButton: 26,
	}},
}

func ParseProfile(name string) (Profile, error) {
	for p, def := range profiles {
		if def.name == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (known: %v)", ErrUnknownProfile, name, ProfileNames())
}

func ProfileNames() []string {
	var names []string
	for _, def := range profiles {
		names = append(names, def.name)
	}
	sort.Strings(names)
	return names
}

func (p Profile) String() string {
	return profiles[p].name
}

func (p Profile) Pins() Pins {
	return profiles[p].pins
}

// ButtonSpec binds one pin to the actions it fires. A both-edge pin with two
// actions fires the first when it settles high and the second when it
// settles low.
type ButtonSpec struct {
	Pin     int
	Pull    gpio.Pull
	Trigger gpio.Trigger
	Actions []action.Action
}

func (b ButtonSpec) actionFor(level gpio.Level) action.Action {
	if len(b.Actions) > 1 && level == gpio.Low {
		return b.Actions[1]
	}
	return b.Actions[0]
}

// Buttons lists the pins that dispatch an action directly. The encoder and
// its push button are handled by the panel itself.
func (p Pins) Buttons() []ButtonSpec {
	return []ButtonSpec{
		{Pin: p.Dispatch, Pull: gpio.PullUp, Trigger: gpio.Falling, Actions: []action.Action{action.Dispatch}},
		{Pin: p.Pause, Pull: gpio.PullUp, Trigger: gpio.Falling, Actions: []action.Action{action.Pause}},
		{Pin: p.Reset, Pull: gpio.PullUp, Trigger: gpio.Falling, Actions: []action.Action{action.Reset}},
		{Pin: p.Activate, Pull: gpio.PullUp, Trigger: gpio.Both, Actions: []action.Action{action.Activate, action.Deactivate}},
	}
}

// Range is a clamped adjustment: each encoder step moves the value by Step,
// never leaving [Min, Max].
type Range struct {
	Step int
	Min  int
	Max  int
}

func (r Range) Validate() error {
	if r.Step <= 0 {
		return fmt.Errorf("step must be positive, got %d", r.Step)
	}
	if r.Min > r.Max {
		return fmt.Errorf("min %d is above max %d", r.Min, r.Max)
	}
	return nil
}

func (r Range) Apply(value, dir int) int {
	value += dir * r.Step
	return min(max(value, r.Min), r.Max)
}
