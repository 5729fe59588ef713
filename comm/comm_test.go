package comm

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdx/remotecontrol/action"
)

// fakePort answers version probes with reply and otherwise returns whatever
// the test feeds it. An empty read sleeps briefly to stand in for a timeout.
type fakePort struct {
	mu      sync.Mutex
	rx      bytes.Buffer
	tx      bytes.Buffer
	reply   string
	readErr error
	hungUp  bool
	closed  bool
	opens   int
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, errors.New("port closed")
	}
	if p.hungUp {
		p.mu.Unlock()
		return 0, io.EOF
	}
	if p.readErr != nil {
		err := p.readErr
		p.readErr = nil
		p.mu.Unlock()
		return 0, err
	}
	if p.rx.Len() > 0 {
		defer p.mu.Unlock()
		return p.rx.Read(b)
	}
	p.mu.Unlock()
	time.Sleep(time.Millisecond)
	return 0, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.New("port closed")
	}
	p.tx.Write(b)
	if string(b) == versionProbe && p.reply != "" {
		p.rx.WriteString(p.reply)
	}
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) feed(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rx.WriteString(s)
}

func (p *fakePort) failRead(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
}

// hangUp makes every read return io.EOF at once, like an unplugged tty.
func (p *fakePort) hangUp() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hungUp = true
}

func (p *fakePort) replug() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hungUp = false
	p.rx.Reset()
}

func (p *fakePort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tx.String()
}

func (p *fakePort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeBus struct {
	mu     sync.Mutex
	ports  map[string]*fakePort
	opened []string
}

func (b *fakeBus) open(name string, baud int, timeout time.Duration) (Port, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.ports[name]
	if !ok {
		return nil, errors.New("no such device")
	}
	p.mu.Lock()
	p.closed = false
	p.opens++
	p.mu.Unlock()
	b.opened = append(b.opened, name)
	return p, nil
}

func (b *fakeBus) list() ([]string, error) {
	return []string{"/dev/ttyS0", "/dev/ttyUSB0", "/dev/ttyUSB9"}, nil
}

type call struct {
	action action.Action
	arg    action.Arg
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) table() *action.Table {
	handlers := make(map[action.Action]action.Handler)
	for _, a := range action.All() {
		a := a
		handlers[a] = func(arg action.Arg) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.calls = append(r.calls, call{a, arg})
		}
	}
	return action.NewTable(handlers)
}

func (r *recorder) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func (r *recorder) contains(c call) bool {
	return r.count(c) > 0
}

func (r *recorder) count(c call) int {
	n := 0
	for _, got := range r.snapshot() {
		if got == c {
			n++
		}
	}
	return n
}

func newTestRemote(rec *recorder) (*Remote, *fakeBus) {
	bus := &fakeBus{ports: map[string]*fakePort{
		"/dev/ttyS0":   {},
		"/dev/ttyUSB0": {reply: "MdxRemote_V1\n"},
	}}
	r := New(rec.table(), Options{
		ProbeWait: time.Millisecond,
		Opener:    bus.open,
		Lister:    bus.list,
	})
	return r, bus
}

func detected(name string) call {
	return call{action.DetectedRemote, action.TextArg(action.StatusDetected(name))}
}

func startRemote(t *testing.T, r *Remote) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not stop after cancel")
		}
	}
}

func serviceUntil(t *testing.T, r *Remote, rec *recorder, want call) {
	t.Helper()
	require.Eventually(t, func() bool {
		if err := r.Service(); err != nil {
			return false
		}
		return rec.contains(want)
	}, 2*time.Second, 2*time.Millisecond, "waiting for %v", want)
}

func TestDiscoveryFindsRemote(t *testing.T) {
	rec := &recorder{}
	r, bus := newTestRemote(rec)
	stop := startRemote(t, r)
	defer stop()

	serviceUntil(t, r, rec, detected("/dev/ttyUSB0"))
	assert.Equal(t, Connected, r.State())

	silent := bus.ports["/dev/ttyS0"]
	assert.True(t, silent.isClosed(), "port without a remote is closed again")
	assert.Equal(t, "V\nV\nV\n", silent.written(), "three probes before giving up")

	remote := bus.ports["/dev/ttyUSB0"]
	remote.feed("dispatch\r\nintensity=40\n\nMdxRemote_V1\npause\n")
	serviceUntil(t, r, rec, call{action.Pause, action.NoArg()})

	assert.Equal(t, []call{
		detected("/dev/ttyUSB0"),
		{action.Dispatch, action.NoArg()},
		{action.Intensity, action.TextArg("intensity=40")},
		{action.Pause, action.NoArg()},
	}, rec.snapshot())
}

func TestReconnectAfterReadFailure(t *testing.T) {
	rec := &recorder{}
	r, bus := newTestRemote(rec)
	stop := startRemote(t, r)
	defer stop()

	serviceUntil(t, r, rec, detected("/dev/ttyUSB0"))
	remote := bus.ports["/dev/ttyUSB0"]
	remote.failRead(io.ErrUnexpectedEOF)

	serviceUntil(t, r, rec, call{action.DetectedRemote, action.TextArg(action.StatusReconnect)})
	require.Eventually(t, func() bool {
		if err := r.Service(); err != nil {
			return false
		}
		return len(rec.snapshot()) == 3
	}, 2*time.Second, 2*time.Millisecond)

	remote.feed("reset\n")
	serviceUntil(t, r, rec, call{action.Reset, action.NoArg()})

	assert.Equal(t, []call{
		detected("/dev/ttyUSB0"),
		{action.DetectedRemote, action.TextArg(action.StatusReconnect)},
		detected("/dev/ttyUSB0"),
		{action.Reset, action.NoArg()},
	}, rec.snapshot())

	bus.mu.Lock()
	defer bus.mu.Unlock()
	assert.Equal(t, "/dev/ttyUSB0", bus.opened[len(bus.opened)-1], "last known port is probed first")
}

func TestSendDroppedWhileDisconnected(t *testing.T) {
	rec := &recorder{}
	r, bus := newTestRemote(rec)

	assert.Equal(t, Disconnected, r.State())
	assert.NoError(t, r.Send([]byte("ping\n")))

	stop := startRemote(t, r)
	serviceUntil(t, r, rec, detected("/dev/ttyUSB0"))
	require.NoError(t, r.Send([]byte("state,running\n")))
	assert.Contains(t, bus.ports["/dev/ttyUSB0"].written(), "state,running\n")
	assert.NotContains(t, bus.ports["/dev/ttyUSB0"].written(), "ping")

	stop()
	assert.Equal(t, Disconnected, r.State())
	assert.True(t, bus.ports["/dev/ttyUSB0"].isClosed())
	assert.NoError(t, r.Send([]byte("late\n")))
}

func TestAcceptsLiveTrafficAsSignature(t *testing.T) {
	rec := &recorder{}
	bus := &fakeBus{ports: map[string]*fakePort{"COM3": {reply: "intensity=55\n"}}}
	r := New(rec.table(), Options{
		ProbeWait: time.Millisecond,
		Ports:     []string{"COM3"},
		Opener:    bus.open,
	})
	stop := startRemote(t, r)
	defer stop()

	serviceUntil(t, r, rec, detected("COM3"))
}

func TestServiceStopsAtUnknownAction(t *testing.T) {
	rec := &recorder{}
	r := New(rec.table(), Options{})
	r.inbox <- "dispatch"
	r.inbox <- "launch"
	r.inbox <- "pause"

	err := r.Service()
	assert.ErrorIs(t, err, action.ErrUnknownAction)
	assert.Equal(t, []call{{action.Dispatch, action.NoArg()}}, rec.snapshot())

	require.NoError(t, r.Service())
	assert.Equal(t, []call{{action.Dispatch, action.NoArg()}, {action.Pause, action.NoArg()}}, rec.snapshot())
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		line string
		want Message
		err  bool
	}{
		{"dispatch", Message{Action: action.Dispatch, Arg: action.NoArg()}, false},
		{"emergency_stop", Message{Action: action.EmergencyStop, Arg: action.NoArg()}, false},
		{"intensity=75", Message{Action: action.Intensity, Arg: action.TextArg("intensity=75")}, false},
		{"intensity", Message{Action: action.Intensity, Arg: action.NoArg()}, false},
		{"MdxRemote_V1", Message{Ignore: true}, false},
		{"Reconnect Remote Control", Message{Action: action.DetectedRemote, Arg: action.TextArg("Reconnect Remote Control")}, false},
		{"Looking for Remote Control", Message{Action: action.DetectedRemote, Arg: action.TextArg("Looking for Remote Control")}, false},
		{"speed=3", Message{}, true},
		{"launch", Message{}, true},
	}
	for _, tt := range tests {
		got, err := parseMessage(tt.line)
		if tt.err {
			assert.ErrorIs(t, err, action.ErrUnknownAction, tt.line)
			continue
		}
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestLineReaderKeepsPartialLines(t *testing.T) {
	port := &fakePort{}
	lines := newLineReader(port)

	port.feed("pau")
	line, err := lines.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "", line, "timeout with a partial line")

	port.feed("se\ndisp")
	line, err = lines.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "pause", line)

	port.feed("atch\n")
	line, err = lines.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "dispatch", line)

	port.failRead(io.ErrClosedPipe)
	_, err = lines.ReadLine()
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "searching", Searching.String())
	assert.Equal(t, "connected", Connected.String())
}
