// Package comm talks to the serial hardware remote: it finds the remote by
// probing serial ports, keeps the connection alive, and turns the lines it
// sends into actions.
package comm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mdx/remotecontrol/action"
)

const versionProbe = "V\n"

type Options struct {
	Baud          int
	ReadTimeout   time.Duration
	ProbeAttempts int
	ProbeWait     time.Duration
	// Ports, when set, replaces enumeration with a fixed candidate list.
	Ports  []string
	Opener Opener
	Lister Lister
}

func DefaultOptions() Options {
	return Options{
		Baud:          57600,
		ReadTimeout:   2 * time.Second,
		ProbeAttempts: 3,
		ProbeWait:     500 * time.Millisecond,
		Opener:        OpenTarm,
		Lister:        ListPorts,
	}
}

// Remote is the serial remote control channel. Run owns the port; Send may
// be called from any goroutine.
type Remote struct {
	opts    Options
	actions *action.Table
	inbox   chan string
	state   atomic.Int32

	mu       sync.Mutex
	port     Port
	portName string
}

func New(actions *action.Table, opts Options) *Remote {
	def := DefaultOptions()
	if opts.Baud <= 0 {
		opts.Baud = def.Baud
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = def.ReadTimeout
	}
	if opts.ProbeAttempts <= 0 {
		opts.ProbeAttempts = def.ProbeAttempts
	}
	if opts.ProbeWait <= 0 {
		opts.ProbeWait = def.ProbeWait
	}
	if opts.Opener == nil {
		opts.Opener = def.Opener
	}
	if opts.Lister == nil {
		opts.Lister = def.Lister
	}
	return &Remote{
		opts:    opts,
		actions: actions,
		inbox:   make(chan string, 256),
	}
}

func (r *Remote) State() ConnectionState {
	return ConnectionState(r.state.Load())
}

func (r *Remote) setState(s ConnectionState) {
	r.state.Store(int32(s))
}

// Run searches for the remote, reads from it, and searches again whenever
// the connection fails. It returns once ctx is done.
func (r *Remote) Run(ctx context.Context) error {
	defer r.release(Disconnected)

	last := ""
	for ctx.Err() == nil {
		name, lines := r.search(ctx, last)
		if lines == nil {
			break
		}
		last = name
		r.push(ctx, action.StatusDetected(name))

		err := r.readLoop(ctx, lines)
		if ctx.Err() != nil {
			break
		}
		log.Printf("serial remote error on %s, trying to reconnect: %v\n", name, err)
		r.push(ctx, action.StatusReconnect)
		r.release(Searching)
	}
	return nil
}

func (r *Remote) search(ctx context.Context, preferred string) (string, *lineReader) {
	r.setState(Searching)
	for {
		for _, name := range r.candidates(preferred) {
			if ctx.Err() != nil {
				return "", nil
			}
			if lines := r.connect(ctx, name); lines != nil {
				return name, lines
			}
		}
		if !sleep(ctx, r.opts.ProbeWait) {
			return "", nil
		}
	}
}

func (r *Remote) candidates(preferred string) []string {
	ports := r.opts.Ports
	if len(ports) == 0 {
		var err error
		if ports, err = r.opts.Lister(); err != nil {
			log.Printf("could not list serial ports: %v\n", err)
		}
	}
	if preferred == "" {
		return ports
	}
	ordered := []string{preferred}
	for _, p := range ports {
		if p != preferred {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

// connect probes one port for the remote. On success the port is adopted
// and a reader positioned after the reply is returned.
func (r *Remote) connect(ctx context.Context, name string) *lineReader {
	port, err := r.opts.Opener(name, r.opts.Baud, r.opts.ReadTimeout)
	if err != nil {
		log.Printf("could not open %s: %v\n", name, err)
		return nil
	}
	log.Printf("looking for remote on %s\n", name)

	lines := newLineReader(port)
	for i := 0; i < r.opts.ProbeAttempts; i++ {
		if _, err := port.Write([]byte(versionProbe)); err != nil {
			break
		}
		if !sleep(ctx, r.opts.ProbeWait) {
			break
		}
		reply, err := lines.ReadLine()
		if err != nil {
			break
		}
		if isRemoteReply(reply) {
			log.Printf("found remote on %s\n", name)
			r.adopt(name, port)
			return lines
		}
	}
	port.Close()
	return nil
}

func isRemoteReply(line string) bool {
	if action.IsIdentity(line) {
		return true
	}
	for _, live := range []string{"intensity", "reset", "pause"} {
		if strings.Contains(line, live) {
			return true
		}
	}
	return false
}

func (r *Remote) adopt(name string, port Port) {
	r.mu.Lock()
	r.port, r.portName = port, name
	r.mu.Unlock()
	r.setState(Connected)
}

// release closes the current port, if any, and moves to the given state.
func (r *Remote) release(next ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setState(next)
	if r.port == nil {
		return
	}
	if err := r.port.Close(); err != nil {
		log.Printf("could not close %s: %v\n", r.portName, err)
	}
	r.port, r.portName = nil, ""
}

func (r *Remote) readLoop(ctx context.Context, lines *lineReader) error {
	for ctx.Err() == nil {
		line, err := lines.ReadLine()
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, " \t\r\n")
		if line == "" {
			continue
		}
		r.push(ctx, line)
	}
	return ctx.Err()
}

func (r *Remote) push(ctx context.Context, line string) {
	select {
	case r.inbox <- line:
	case <-ctx.Done():
	}
}

// Send writes b to the remote. Without a connection the bytes are dropped.
func (r *Remote) Send(b []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.port == nil {
		return nil
	}
	if _, err := r.port.Write(b); err != nil {
		return fmt.Errorf("could not write to %s: %w", r.portName, err)
	}
	return nil
}

// Service dispatches every line received since the last call, in order.
// It stops at the first line that cannot be dispatched and returns why.
func (r *Remote) Service() error {
	for {
		select {
		case line := <-r.inbox:
			msg, err := parseMessage(line)
			if err != nil {
				return err
			}
			if msg.Ignore {
				continue
			}
			if err := r.actions.Dispatch(msg.Action, msg.Arg); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func parseMessage(s string) (Message, error) {
	switch {
	case action.IsStatus(s):
		return Message{Action: action.DetectedRemote, Arg: action.TextArg(s)}, nil
	case action.IsIdentity(s):
		return Message{Ignore: true}, nil
	}
	if key, _, ok := strings.Cut(s, "="); ok {
		if a, ok := action.Parse(key); ok {
			return Message{Action: a, Arg: action.TextArg(s)}, nil
		}
	}
	a, ok := action.Parse(s)
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", action.ErrUnknownAction, s)
	}
	return Message{Action: a, Arg: action.NoArg()}, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
