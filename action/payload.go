package action

import (
	"fmt"
	"strconv"
	"strings"
)

type PayloadKind int

// PayloadKind values
const (
	None PayloadKind = iota
	Text
	Number
)

// Arg is the argument handed to a handler. Which kind a channel produces for
// a given action is part of that channel's wire contract.
type Arg struct {
	Kind  PayloadKind
	Text  string
	Value int
}

func NoArg() Arg {
	return Arg{Kind: None}
}

func TextArg(s string) Arg {
	return Arg{Kind: Text, Text: s}
}

func NumberArg(n int) Arg {
	return Arg{Kind: Number, Value: n}
}

// Int extracts an integer from a Number, a bare numeric Text, or a
// "key=value" Text.
func (a Arg) Int() (int, error) {
	switch a.Kind {
	case Number:
		return a.Value, nil
	case Text:
		s := a.Text
		if _, v, ok := strings.Cut(s, "="); ok {
			s = v
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, fmt.Errorf("argument %q is not an integer: %w", a.Text, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("action has no argument")
	}
}

func (a Arg) String() string {
	switch a.Kind {
	case Text:
		return a.Text
	case Number:
		return strconv.Itoa(a.Value)
	default:
		return ""
	}
}
