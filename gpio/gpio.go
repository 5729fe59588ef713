// Package gpio turns raw digital pin levels into settled edges and rotary
// encoder steps. Pins are numbered BCM style.
package gpio

import "time"

type Level uint8

const (
	Low Level = iota
	High
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

type Pull int

const (
	PullUp Pull = iota
	PullDown
	PullOff
)

// Trigger selects which settled transitions an EdgeSource reports.
type Trigger int

const (
	Falling Trigger = iota
	Both
)

// Edge is one settled transition of a pin. Level is the level the pin
// settled at, so a rising edge has Level == High.
type Edge struct {
	Pin   int
	Level Level
	At    time.Time
}

func (e Edge) Rising() bool {
	return e.Level == High
}

// Reader gives access to input pins.
type Reader interface {
	Setup(pin int, pull Pull) error
	Read(pin int) (Level, error)
}
