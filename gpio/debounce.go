package gpio

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Debouncer reports a new level only once it has held for the whole window.
// Bounces that return to the settled level before then are never reported.
type Debouncer struct {
	window  time.Duration
	stable  Level
	pending Level
	since   time.Time
}

func NewDebouncer(initial Level, window time.Duration) *Debouncer {
	return &Debouncer{window: window, stable: initial, pending: initial}
}

func (d *Debouncer) Level() Level {
	return d.stable
}

// Sample feeds one raw reading. It returns true when the reading settles
// the pin at a new level.
func (d *Debouncer) Sample(level Level, now time.Time) (Level, bool) {
	if level != d.pending {
		d.pending = level
		d.since = now
	}
	if d.pending == d.stable || now.Sub(d.since) < d.window {
		return d.stable, false
	}
	d.stable = d.pending
	return d.stable, true
}

// EdgeSource is one debounced input pin.
type EdgeSource struct {
	Pin     int
	Pull    Pull
	Trigger Trigger
	Window  time.Duration

	deb *Debouncer
}

func (s *EdgeSource) reset(level Level) {
	s.deb = NewDebouncer(level, s.Window)
}

func (s *EdgeSource) sample(level Level, now time.Time) (Edge, bool) {
	settled, changed := s.deb.Sample(level, now)
	if !changed {
		return Edge{}, false
	}
	if s.Trigger == Falling && settled != Low {
		return Edge{}, false
	}
	return Edge{Pin: s.Pin, Level: settled, At: now}, true
}

// Watch samples every source each interval and calls emit for each settled
// edge, in pin order within a sample. Pins are configured and their current
// level taken as settled before the first sample, so a restarted Watch never
// reports the level a pin already had. It blocks until ctx is done.
func Watch(ctx context.Context, r Reader, sources []*EdgeSource, interval time.Duration, emit func(Edge)) error {
	for _, s := range sources {
		if err := r.Setup(s.Pin, s.Pull); err != nil {
			return fmt.Errorf("could not set up gpio %d: %w", s.Pin, err)
		}
		level, err := r.Read(s.Pin)
		if err != nil {
			return fmt.Errorf("could not read gpio %d: %w", s.Pin, err)
		}
		s.reset(level)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	failing := make(map[int]bool)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			for _, s := range sources {
				level, err := r.Read(s.Pin)
				if err != nil {
					if !failing[s.Pin] {
						log.Printf("gpio %d read failed: %v\n", s.Pin, err)
						failing[s.Pin] = true
					}
					continue
				}
				failing[s.Pin] = false
				if e, ok := s.sample(level, now); ok {
					emit(e)
				}
			}
		}
	}
}

// Edges runs Watch in its own goroutine and returns its edges as a channel.
// The channel is closed once ctx is done or the pins could not be set up;
// wait then returns the reason.
func Edges(ctx context.Context, r Reader, sources []*EdgeSource, interval time.Duration) (edges <-chan Edge, wait func() error) {
	ch := make(chan Edge)
	errc := make(chan error, 1)
	go func() {
		defer close(ch)
		errc <- Watch(ctx, r, sources, interval, func(e Edge) {
			select {
			case ch <- e:
			case <-ctx.Done():
			}
		})
	}()
	return ch, sync.OnceValue(func() error { return <-errc })
}
