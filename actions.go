package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/mdx/remotecontrol/action"
)

const (
	stateDisabled = "disabled"
	stateReady    = "ready"
	stateRunning  = "running"
	statePaused   = "paused"
	stateStopped  = "emergency stop"
)

// mirror receives a copy of every dispatched action.
type mirror interface {
	Publish(a action.Action, arg action.Arg)
}

type mirrorList []mirror

func (l mirrorList) Publish(a action.Action, arg action.Arg) {
	for _, m := range l {
		m.Publish(a, arg)
	}
}

type appState struct {
	platform     string
	remoteStatus string
	intensity    int
	payload      int
	showParks    bool
	park         int
	// reply sends a line back to the remotes
	reply func(line string)
}

func newAppState() *appState {
	return &appState{
		platform:  stateDisabled,
		intensity: 100,
		payload:   100,
		reply:     func(string) {},
	}
}

func (s *appState) setPlatform(state string) {
	if s.platform == state {
		return
	}
	log.Printf("platform %s -> %s\n", s.platform, state)
	s.platform = state
	s.reply(fmt.Sprintf("state,%s\n", state))
}

func (s *appState) activate(action.Arg) {
	if s.platform == stateDisabled || s.platform == stateStopped {
		s.setPlatform(stateReady)
	}
}

func (s *appState) deactivate(action.Arg) {
	s.setPlatform(stateDisabled)
}

func (s *appState) dispatch(action.Arg) {
	switch s.platform {
	case stateReady, statePaused:
		s.setPlatform(stateRunning)
	default:
		log.Printf("ignoring dispatch while %s\n", s.platform)
	}
}

func (s *appState) pause(action.Arg) {
	switch s.platform {
	case stateRunning:
		s.setPlatform(statePaused)
	case statePaused:
		s.setPlatform(stateRunning)
	}
}

func (s *appState) reset(action.Arg) {
	log.Println("resetting headset view")
}

func (s *appState) emergencyStop(action.Arg) {
	log.Println("emergency stop")
	s.setPlatform(stateStopped)
}

func (s *appState) setIntensity(arg action.Arg) {
	v, err := arg.Int()
	if err != nil {
		log.Printf("bad intensity: %v\n", err)
		return
	}
	s.intensity = v
	log.Printf("intensity %d%%\n", v)
}

func (s *appState) setPayload(arg action.Arg) {
	v, err := arg.Int()
	if err != nil {
		log.Printf("bad payload: %v\n", err)
		return
	}
	s.payload = v
	log.Printf("payload %d\n", v)
}

func (s *appState) detectedRemote(arg action.Arg) {
	s.remoteStatus = arg.String()
	switch {
	case strings.Contains(s.remoteStatus, "Detected Remote"):
		log.Printf("remote status: %s\n", s.remoteStatus)
	default:
		log.Printf("remote status (not connected): %s\n", s.remoteStatus)
	}
}

func (s *appState) setShowParks(arg action.Arg) {
	s.showParks = arg.String() == "True"
	log.Printf("show parks: %v\n", s.showParks)
}

func (s *appState) scrollParks(arg action.Arg) {
	dir, err := arg.Int()
	if err != nil {
		log.Printf("bad park scroll: %v\n", err)
		return
	}
	s.park += dir
	log.Printf("park %d selected\n", s.park)
}

// newActionTable binds every action to the host state and copies each one
// to the mirrors after it was handled. Mirrors may be added until the first
// dispatch.
func newActionTable(s *appState, mirrors *mirrorList) *action.Table {
	handlers := map[action.Action]action.Handler{
		action.DetectedRemote: s.detectedRemote,
		action.Activate:       s.activate,
		action.Deactivate:     s.deactivate,
		action.Pause:          s.pause,
		action.Dispatch:       s.dispatch,
		action.Reset:          s.reset,
		action.EmergencyStop:  s.emergencyStop,
		action.Intensity:      s.setIntensity,
		action.Payload:        s.setPayload,
		action.ShowParks:      s.setShowParks,
		action.ScrollParks:    s.scrollParks,
	}
	for a, h := range handlers {
		a, h := a, h
		handlers[a] = func(arg action.Arg) {
			h(arg)
			mirrors.Publish(a, arg)
		}
	}
	return action.NewTable(handlers)
}
