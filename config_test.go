package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdx/remotecontrol/local"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
serial:
  enabled: true
  driver: bugst
  ports: [/dev/ttyACM0]
network:
  enabled: true
local:
  enabled: true
  profile: dual_reset_pcb_pins
  intensity_range: [10, 0, 100]
  require_pi: false
tail:
  listen: 127.0.0.1:8099
tick_ms: 20
`)
	config := defaultConfig()
	require.NoError(t, config.load(path))

	assert.Equal(t, "bugst", config.Serial.Driver)
	assert.Equal(t, 57600, config.Serial.Baud, "unset keys keep their defaults")
	assert.Equal(t, 10013, config.Network.Port)
	assert.Equal(t, 20, config.TickMS)
	assert.Equal(t, "127.0.0.1:8099", config.Tail.Listen)

	rc, err := config.remoteConfig(false)
	require.NoError(t, err)
	assert.True(t, rc.Serial)
	assert.True(t, rc.Network)
	assert.True(t, rc.Local)
	assert.Equal(t, []string{"/dev/ttyACM0"}, rc.SerialOptions.Ports)
	assert.Equal(t, 2*time.Second, rc.SerialOptions.ReadTimeout)
	assert.Equal(t, 10013, rc.NetworkOptions.Port)
	assert.Equal(t, local.DualResetPCB, rc.LocalOptions.Profile)
	assert.Equal(t, local.Range{Step: 10, Min: 0, Max: 100}, rc.LocalOptions.Intensity)
	assert.Equal(t, local.Range{Step: 10, Min: 0, Max: 200}, rc.LocalOptions.Payload)
	assert.Equal(t, 50*time.Millisecond, rc.LocalOptions.ButtonDebounce)
	assert.Equal(t, time.Millisecond, rc.LocalOptions.EncoderDebounce)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "serial:\n  speed: 9600\n")
	config := defaultConfig()
	assert.Error(t, config.load(path))
}

func TestLoadConfigMissingFile(t *testing.T) {
	config := defaultConfig()
	assert.ErrorContains(t, config.load(filepath.Join(t.TempDir(), "nope.yaml")), "could not open config file")
}

func TestDefaultConfigOnlySerial(t *testing.T) {
	config := defaultConfig()
	rc, err := config.remoteConfig(true)
	require.NoError(t, err)
	assert.True(t, rc.Serial)
	assert.False(t, rc.Network)
	assert.False(t, rc.Local)
	assert.Equal(t, 57600, rc.SerialOptions.Baud)
}

func TestLocalNeedsPi(t *testing.T) {
	config := defaultConfig()
	config.Local.Enabled = true

	rc, err := config.remoteConfig(false)
	require.NoError(t, err)
	assert.False(t, rc.Local)

	rc, err = config.remoteConfig(true)
	require.NoError(t, err)
	assert.True(t, rc.Local)
	assert.Equal(t, local.WiredSwitches, rc.LocalOptions.Profile)
}

func TestRemoteConfigErrors(t *testing.T) {
	config := defaultConfig()
	config.Serial.Driver = "ftdi"
	_, err := config.remoteConfig(true)
	assert.ErrorContains(t, err, "unknown serial driver")

	config = defaultConfig()
	config.Local.Enabled = true
	config.Local.Profile = "breadboard"
	_, err = config.remoteConfig(true)
	assert.ErrorIs(t, err, local.ErrUnknownProfile)

	config = defaultConfig()
	config.Local.Enabled = true
	config.Local.PayloadRange = []int{1, 2}
	_, err = config.remoteConfig(true)
	assert.ErrorContains(t, err, "payload_range")

	config = defaultConfig()
	config.Local.Enabled = true
	config.Local.IntensityRange = []int{0, 0, 10}
	_, err = config.remoteConfig(true)
	assert.ErrorContains(t, err, "intensity_range")
}
