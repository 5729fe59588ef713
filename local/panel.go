// Package local reads the buttons, switches and rotary encoder wired
// straight to the controller's GPIO header.
package local

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mdx/remotecontrol/action"
	"github.com/mdx/remotecontrol/gpio"
)

const startLevel = 100

type Options struct {
	Profile         Profile
	Intensity       Range
	Payload         Range
	ButtonDebounce  time.Duration
	EncoderDebounce time.Duration
	PollInterval    time.Duration
}

// Panel is the local control channel. Edges are collected in the
// background by Run and acted on when the host calls Service.
type Panel struct {
	opts    Options
	pins    Pins
	reader  gpio.Reader
	actions *action.Table
	buttons map[int]ButtonSpec
	sources []*gpio.EdgeSource
	decoder *gpio.Quadrature
	edges   chan gpio.Edge
	// encoder contact levels read when Run starts, A then B
	seeds chan [2]gpio.Level

	intensity         int
	payload           int
	lastIntensity     int
	lastPayload       int
	intensityReported bool
	payloadReported   bool
	scrollMode        bool
	parkScroll        int
}

func New(actions *action.Table, reader gpio.Reader, opts Options) (*Panel, error) {
	if _, ok := profiles[opts.Profile]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownProfile, opts.Profile)
	}
	if err := opts.Intensity.Validate(); err != nil {
		return nil, fmt.Errorf("invalid intensity range: %w", err)
	}
	if err := opts.Payload.Validate(); err != nil {
		return nil, fmt.Errorf("invalid payload range: %w", err)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Millisecond
	}

	p := &Panel{
		opts:      opts,
		pins:      opts.Profile.Pins(),
		reader:    reader,
		actions:   actions,
		buttons:   make(map[int]ButtonSpec),
		edges:     make(chan gpio.Edge, 256),
		seeds:     make(chan [2]gpio.Level, 1),
		intensity: startLevel,
		payload:   startLevel,
	}
	p.decoder = gpio.NewQuadrature(p.encoderStep)

	for _, b := range p.pins.Buttons() {
		if err := p.addButton(b); err != nil {
			return nil, err
		}
	}
	if err := p.addSource(p.pins.EncoderButton, gpio.PullUp, gpio.Both, opts.ButtonDebounce); err != nil {
		return nil, err
	}
	if err := p.addSource(p.pins.EncoderA, gpio.PullUp, gpio.Both, opts.EncoderDebounce); err != nil {
		return nil, err
	}
	if err := p.addSource(p.pins.EncoderB, gpio.PullUp, gpio.Both, opts.EncoderDebounce); err != nil {
		return nil, err
	}

	log.Printf("local control panel using %s pins %+v\n", opts.Profile, p.pins)
	return p, nil
}

func (p *Panel) addSource(pin int, pull gpio.Pull, trigger gpio.Trigger, window time.Duration) error {
	for _, s := range p.sources {
		if s.Pin == pin {
			return fmt.Errorf("profile %s uses gpio %d twice", p.opts.Profile, pin)
		}
	}
	p.sources = append(p.sources, &gpio.EdgeSource{Pin: pin, Pull: pull, Trigger: trigger, Window: window})
	return nil
}

func (p *Panel) addButton(b ButtonSpec) error {
	if err := p.addSource(b.Pin, b.Pull, b.Trigger, p.opts.ButtonDebounce); err != nil {
		return err
	}
	p.buttons[b.Pin] = b
	return nil
}

// Run watches the panel's pins until ctx is done.
func (p *Panel) Run(ctx context.Context) error {
	if err := p.seedEncoder(); err != nil {
		return err
	}
	edges, wait := gpio.Edges(ctx, p.reader, p.sources, p.opts.PollInterval)
	for e := range edges {
		select {
		case p.edges <- e:
		case <-ctx.Done():
		}
	}
	err := wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Panel) seedEncoder() error {
	var levels [2]gpio.Level
	for i, pin := range []int{p.pins.EncoderA, p.pins.EncoderB} {
		if err := p.reader.Setup(pin, gpio.PullUp); err != nil {
			return fmt.Errorf("could not set up encoder gpio %d: %w", pin, err)
		}
		level, err := p.reader.Read(pin)
		if err != nil {
			return fmt.Errorf("could not read encoder gpio %d: %w", pin, err)
		}
		levels[i] = level
	}
	// edges left over from an earlier run belong to the old seed
	for drained := false; !drained; {
		select {
		case <-p.edges:
		default:
			drained = true
		}
	}
	select {
	case <-p.seeds:
	default:
	}
	p.seeds <- levels
	return nil
}

// Send is a no-op, the panel has nothing to send to.
func (p *Panel) Send([]byte) error {
	return nil
}

// Service handles every edge collected since the last call, then reports
// intensity, payload and park scrolling if they changed.
func (p *Panel) Service() error {
	for {
		// a seed is always queued before the edges that follow it
		select {
		case lv := <-p.seeds:
			p.decoder.Seed(lv[0], lv[1])
		default:
		}
		select {
		case e := <-p.edges:
			if err := p.handleEdge(e); err != nil {
				return err
			}
		default:
			return p.report()
		}
	}
}

func (p *Panel) handleEdge(e gpio.Edge) error {
	switch e.Pin {
	case p.pins.EncoderA:
		p.decoder.Update(gpio.ChannelA, e.Level)
	case p.pins.EncoderB:
		p.decoder.Update(gpio.ChannelB, e.Level)
	case p.pins.EncoderButton:
		p.scrollMode = e.Level == gpio.High
		if !p.Activated() {
			arg := "False"
			if p.scrollMode {
				arg = "True"
			}
			return p.actions.Dispatch(action.ShowParks, action.TextArg(arg))
		}
	default:
		b, ok := p.buttons[e.Pin]
		if !ok {
			return nil
		}
		return p.actions.Dispatch(b.actionFor(e.Level), action.NoArg())
	}
	return nil
}

// Activated reports whether the activate switch is up.
func (p *Panel) Activated() bool {
	level, err := p.reader.Read(p.pins.Activate)
	if err != nil {
		log.Printf("could not read activate switch: %v\n", err)
		return false
	}
	return level == gpio.High
}

func (p *Panel) encoderStep(dir int) {
	activated := p.Activated()
	switch {
	case !p.scrollMode && activated:
		p.intensity = p.opts.Intensity.Apply(p.intensity, dir)
	case !p.scrollMode:
		p.payload = p.opts.Payload.Apply(p.payload, dir)
	case !activated:
		p.parkScroll += dir
	}
}

func (p *Panel) report() error {
	if !p.intensityReported || p.intensity != p.lastIntensity {
		if err := p.actions.Dispatch(action.Intensity, action.TextArg(fmt.Sprintf("intensity=%d", p.intensity))); err != nil {
			return err
		}
		p.lastIntensity, p.intensityReported = p.intensity, true
	}
	if !p.payloadReported || p.payload != p.lastPayload {
		if err := p.actions.Dispatch(action.Payload, action.TextArg(fmt.Sprintf("payload=%d", p.payload))); err != nil {
			return err
		}
		p.lastPayload, p.payloadReported = p.payload, true
	}

	// two net clicks are needed before the list scrolls
	if p.parkScroll > 1 || p.parkScroll < -1 {
		dir := "1"
		if p.parkScroll < 0 {
			dir = "-1"
		}
		if err := p.actions.Dispatch(action.ScrollParks, action.TextArg(dir)); err != nil {
			return err
		}
		p.parkScroll = 0
	}
	return nil
}
