package gpio

import (
	"fmt"
	"sync"
)

// Fake is an in-memory Reader for running without hardware.
type Fake struct {
	mu     sync.Mutex
	levels map[int]Level
	pulls  map[int]Pull
}

func NewFake() *Fake {
	return &Fake{levels: make(map[int]Level), pulls: make(map[int]Pull)}
}

// Setup configures a pin, idling it at the level its pull resistor gives.
func (f *Fake) Setup(pin int, pull Pull) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls[pin] = pull
	if _, ok := f.levels[pin]; !ok && pull == PullUp {
		f.levels[pin] = High
	}
	return nil
}

func (f *Fake) Read(pin int) (Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pulls[pin]; !ok {
		return Low, fmt.Errorf("gpio %d not set up", pin)
	}
	return f.levels[pin], nil
}

func (f *Fake) Set(pin int, level Level) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[pin] = level
}
