package gpio

import (
	"fmt"
	"log"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// RPIO reads Raspberry Pi pins through the memory mapped GPIO registers.
type RPIO struct {
	mu     sync.Mutex
	opened bool
}

func NewRPIO() *RPIO {
	return &RPIO{}
}

func (r *RPIO) open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opened {
		return nil
	}
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("could not open gpio memory: %w", err)
	}
	r.opened = true
	return nil
}

func (r *RPIO) Setup(pin int, pull Pull) error {
	if err := r.open(); err != nil {
		return err
	}
	p := rpio.Pin(pin)
	p.Input()
	switch pull {
	case PullUp:
		p.PullUp()
	case PullDown:
		p.PullDown()
	default:
		p.PullOff()
	}
	log.Printf("gpio %d configured as input (pull %d)\n", pin, pull)
	return nil
}

func (r *RPIO) Read(pin int) (Level, error) {
	if err := r.open(); err != nil {
		return Low, err
	}
	if rpio.Pin(pin).Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

func (r *RPIO) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.opened {
		return nil
	}
	r.opened = false
	return rpio.Close()
}
