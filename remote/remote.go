// Package remote combines the serial, network and local control channels
// behind one Send/Service surface for the host.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/mdx/remotecontrol/action"
	"github.com/mdx/remotecontrol/comm"
	"github.com/mdx/remotecontrol/gpio"
	"github.com/mdx/remotecontrol/local"
	"github.com/mdx/remotecontrol/netremote"
)

// Channel is one source of remote control input. Run does the blocking I/O
// in the background, Service dispatches what it collected on the host's
// goroutine.
type Channel interface {
	Run(ctx context.Context) error
	Send(b []byte) error
	Service() error
}

type Config struct {
	Serial  bool
	Network bool
	Local   bool

	SerialOptions  comm.Options
	NetworkOptions netremote.Options
	LocalOptions   local.Options
	// GPIO is the pin reader for the local channel, go-rpio when nil.
	GPIO gpio.Reader
}

// DefaultConfig enables only the serial remote.
func DefaultConfig() Config {
	return Config{
		Serial:        true,
		SerialOptions: comm.DefaultOptions(),
	}
}

type namedChannel struct {
	name string
	ch   Channel
}

type RemoteControl struct {
	channels []namedChannel
	panel    *local.Panel

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds the enabled channels. Nothing runs until Start.
func New(actions *action.Table, cfg Config) (*RemoteControl, error) {
	rc := &RemoteControl{}
	if cfg.Serial {
		rc.add("serial", comm.New(actions, cfg.SerialOptions))
	}
	if cfg.Network {
		rc.add("network", netremote.New(actions, cfg.NetworkOptions))
	}
	if cfg.Local {
		reader := cfg.GPIO
		if reader == nil {
			reader = gpio.NewRPIO()
		}
		panel, err := local.New(actions, reader, cfg.LocalOptions)
		if err != nil {
			return nil, fmt.Errorf("could not set up local controls: %w", err)
		}
		rc.add("local", panel)
		rc.panel = panel
	}
	return rc, nil
}

func (rc *RemoteControl) add(name string, ch Channel) {
	rc.channels = append(rc.channels, namedChannel{name, ch})
}

// Channels returns the names of the enabled channels in service order.
func (rc *RemoteControl) Channels() []string {
	names := make([]string, len(rc.channels))
	for i, c := range rc.channels {
		names[i] = c.name
	}
	return names
}

// LocalActivated reports whether the local activate switch is up. Without
// local controls it is always false.
func (rc *RemoteControl) LocalActivated() bool {
	return rc.panel != nil && rc.panel.Activated()
}

// Start runs every channel's background loop until Close or until ctx is
// done. Calling it again while running does nothing.
func (rc *RemoteControl) Start(ctx context.Context) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.cancel != nil {
		return
	}
	ctx, rc.cancel = context.WithCancel(ctx)
	for _, c := range rc.channels {
		c := c
		rc.wg.Add(1)
		go func() {
			defer rc.wg.Done()
			log.Printf("starting %s remote channel\n", c.name)
			if err := c.ch.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("%s remote channel stopped: %v\n", c.name, err)
			}
		}()
	}
}

// Close stops the background loops and waits for them to return.
func (rc *RemoteControl) Close() {
	rc.mu.Lock()
	cancel := rc.cancel
	rc.cancel = nil
	rc.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	rc.wg.Wait()
}

// Send forwards b to every enabled channel.
func (rc *RemoteControl) Send(b []byte) error {
	var errs []error
	for _, c := range rc.channels {
		if err := c.ch.Send(b); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

// Service drains the channels in order: serial, network, local. The first
// dispatch failure is returned and the remaining channels wait for the next
// tick.
func (rc *RemoteControl) Service() error {
	for _, c := range rc.channels {
		// Fail fast: a channel after the failing one is not serviced this
		// tick. Its input stays queued and is handled on the next call.
		if err := c.ch.Service(); err != nil {
			return fmt.Errorf("%s remote: %w", c.name, err)
		}
	}
	return nil
}
