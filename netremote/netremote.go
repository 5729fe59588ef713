// Package netremote receives remote control commands as UDP datagrams and
// replies to whoever sent the last one.
package netremote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mdx/remotecontrol/action"
	"github.com/mdx/remotecontrol/comm"
)

const (
	DefaultPort = 10013
	maxDatagram = 80
	pollTimeout = 100 * time.Millisecond
)

type Options struct {
	Port   int
	Listen Listener
}

// Remote is the network remote control channel.
type Remote struct {
	opts    Options
	actions *action.Table
	inbox   chan string

	mu   sync.Mutex
	sock UDPSocket
	peer *net.UDPAddr
}

func New(actions *action.Table, opts Options) *Remote {
	if opts.Port <= 0 {
		opts.Port = DefaultPort
	}
	if opts.Listen == nil {
		opts.Listen = ListenUDP
	}
	return &Remote{
		opts:    opts,
		actions: actions,
		inbox:   make(chan string, 256),
	}
}

// Run binds the port on all interfaces and queues incoming datagrams until
// ctx is done. Only a failure to bind is returned.
func (r *Remote) Run(ctx context.Context) error {
	sock, err := r.opts.Listen(&net.UDPAddr{Port: r.opts.Port})
	if err != nil {
		return fmt.Errorf("could not listen on udp port %d: %w", r.opts.Port, err)
	}
	r.mu.Lock()
	r.sock = sock
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		sock.Close()
		r.sock, r.peer = nil, nil
	}()
	log.Printf("udp remote listening on %v\n", sock.LocalAddr())

	buf := make([]byte, maxDatagram)
	deadlineErrLogged := false
	for ctx.Err() == nil {
		if err := sock.SetReadDeadline(time.Now().Add(pollTimeout)); err != nil && !deadlineErrLogged {
			log.Printf("could not set udp read deadline: %v\n", err)
			deadlineErrLogged = true
		}
		n, addr, err := sock.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("udp remote read error: %v\n", err)
			continue
		}

		r.mu.Lock()
		r.peer = addr
		r.mu.Unlock()

		msg := strings.TrimRight(string(buf[:n]), " \t\r\n\x00")
		if msg == "" {
			continue
		}
		select {
		case r.inbox <- msg:
		case <-ctx.Done():
		}
	}
	return nil
}

// Peer returns the address replies go to, or nil before the first datagram.
func (r *Remote) Peer() *net.UDPAddr {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peer
}

// Send replies to the last sender. Before anyone has sent a datagram this
// does nothing.
func (r *Remote) Send(b []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sock == nil || r.peer == nil {
		return nil
	}
	if _, err := r.sock.WriteToUDP(b, r.peer); err != nil {
		return fmt.Errorf("could not send to %v: %w", r.peer, err)
	}
	return nil
}

// Service dispatches every datagram received since the last call, in order.
func (r *Remote) Service() error {
	for {
		select {
		case msg := <-r.inbox:
			m, err := parseDatagram(msg)
			if err != nil {
				return err
			}
			if m.Ignore {
				continue
			}
			if err := r.actions.Dispatch(m.Action, m.Arg); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// parseDatagram classifies a datagram like a serial line, except that a
// key=value message hands only the integer value to the handler.
func parseDatagram(s string) (comm.Message, error) {
	switch {
	case action.IsStatus(s):
		return comm.Message{Action: action.DetectedRemote, Arg: action.TextArg(s)}, nil
	case action.IsIdentity(s):
		return comm.Message{Ignore: true}, nil
	case strings.Contains(s, action.Intensity.String()):
		key, value, ok := strings.Cut(s, "=")
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if !ok || err != nil {
			log.Printf("%q is an invalid intensity message\n", s)
			return comm.Message{Ignore: true}, nil
		}
		a, ok := action.Parse(key)
		if !ok {
			return comm.Message{}, fmt.Errorf("%w: %q", action.ErrUnknownAction, key)
		}
		return comm.Message{Action: a, Arg: action.NumberArg(n)}, nil
	}
	a, ok := action.Parse(s)
	if !ok {
		return comm.Message{}, fmt.Errorf("%w: %q", action.ErrUnknownAction, s)
	}
	return comm.Message{Action: a, Arg: action.NoArg()}, nil
}
