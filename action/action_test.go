package action

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKnownNames(t *testing.T) {
	for _, a := range All() {
		got, ok := Parse(a.String())
		require.True(t, ok, "parse %s", a)
		assert.Equal(t, a, got)
	}
	assert.Len(t, All(), 11)
}

func TestParseRejectsUnknown(t *testing.T) {
	for _, name := range []string{"", "Dispatch", "detected remote", "launch"} {
		_, ok := Parse(name)
		assert.False(t, ok, name)
	}
	_, ok := Parse(" pause ")
	assert.True(t, ok)
}

func TestTableDispatch(t *testing.T) {
	var got []Arg
	table := NewTable(map[Action]Handler{
		Dispatch:  func(a Arg) { got = append(got, a) },
		Intensity: func(a Arg) { got = append(got, a) },
	})

	require.NoError(t, table.Dispatch(Dispatch, NoArg()))
	require.NoError(t, table.DispatchName("intensity", TextArg("intensity=40")))
	assert.Equal(t, []Arg{NoArg(), TextArg("intensity=40")}, got)
}

func TestTableDispatchUnknownFails(t *testing.T) {
	table := NewTable(map[Action]Handler{Pause: func(Arg) {}})

	err := table.Dispatch(Reset, NoArg())
	assert.True(t, errors.Is(err, ErrUnknownAction))

	err = table.DispatchName("warp", NoArg())
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Contains(t, err.Error(), "warp")
}

func TestTableIgnoresNilHandlers(t *testing.T) {
	table := NewTable(map[Action]Handler{Pause: nil})
	assert.False(t, table.Has(Pause))
	assert.ErrorIs(t, table.Dispatch(Pause, NoArg()), ErrUnknownAction)
}

func TestArgInt(t *testing.T) {
	tests := []struct {
		arg  Arg
		want int
		err  bool
	}{
		{NumberArg(42), 42, false},
		{TextArg("intensity=75"), 75, false},
		{TextArg("-1"), -1, false},
		{TextArg("intensity="), 0, true},
		{TextArg("True"), 0, true},
		{NoArg(), 0, true},
	}
	for _, tt := range tests {
		n, err := tt.arg.Int()
		if tt.err {
			assert.Error(t, err, tt.arg)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, n)
	}
}

func TestStatusClassification(t *testing.T) {
	assert.True(t, IsStatus(StatusDetected("/dev/ttyUSB0")))
	assert.True(t, IsStatus(StatusReconnect))
	assert.True(t, IsStatus(StatusLooking))
	assert.False(t, IsStatus("dispatch"))
	assert.True(t, IsIdentity("MdxRemote_V1 ready"))
	assert.False(t, IsIdentity("intensity=3"))
}
