package action

import (
	"errors"
	"fmt"
)

var ErrUnknownAction = errors.New("unknown action")

type Handler func(Arg)

// Table maps actions to host handlers. It is fixed once built, so it can be
// shared by every channel without locking.
type Table struct {
	handlers map[Action]Handler
}

func NewTable(handlers map[Action]Handler) *Table {
	t := &Table{handlers: make(map[Action]Handler, len(handlers))}
	for a, h := range handlers {
		if h != nil {
			t.handlers[a] = h
		}
	}
	return t
}

func (t *Table) Has(a Action) bool {
	_, ok := t.handlers[a]
	return ok
}

// Dispatch calls the handler bound to a. A missing binding is an error for
// the caller to deal with, it is never dropped here.
func (t *Table) Dispatch(a Action, arg Arg) error {
	h, ok := t.handlers[a]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, a)
	}
	h(arg)
	return nil
}

// DispatchName resolves a wire name and dispatches it.
func (t *Table) DispatchName(name string, arg Arg) error {
	a, ok := Parse(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	return t.Dispatch(a, arg)
}
