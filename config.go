package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/mdx/remotecontrol/comm"
	"github.com/mdx/remotecontrol/local"
	"github.com/mdx/remotecontrol/netremote"
	"github.com/mdx/remotecontrol/remote"
)

type serialConfig struct {
	Enabled       bool
	Driver        string
	Baud          int
	Ports         []string
	ReadTimeoutMS int `yaml:"read_timeout_ms"`
}

type networkConfig struct {
	Enabled bool
	Port    int
}

type localConfig struct {
	Enabled           bool
	Profile           string
	IntensityRange    []int `yaml:"intensity_range"`
	PayloadRange      []int `yaml:"payload_range"`
	ButtonDebounceMS  int   `yaml:"button_debounce_ms"`
	EncoderDebounceMS int   `yaml:"encoder_debounce_ms"`
	PollIntervalMS    int   `yaml:"poll_interval_ms"`
	RequirePi         bool  `yaml:"require_pi"`
}

type tailConfig struct {
	Listen string
}

type mqttConfig struct {
	Broker   string
	ClientID string `yaml:"client_id"`
	Topic    string
}

type appConfig struct {
	Serial  serialConfig
	Network networkConfig
	Local   localConfig
	Tail    tailConfig
	MQTT    mqttConfig `yaml:"mqtt"`
	TickMS  int        `yaml:"tick_ms"`
}

func defaultConfig() appConfig {
	return appConfig{
		Serial: serialConfig{
			Enabled:       true,
			Driver:        "tarm",
			Baud:          57600,
			ReadTimeoutMS: 2000,
		},
		Network: networkConfig{Port: netremote.DefaultPort},
		Local: localConfig{
			Profile:           local.WiredSwitches.String(),
			IntensityRange:    []int{5, 50, 150},
			PayloadRange:      []int{10, 0, 200},
			ButtonDebounceMS:  50,
			EncoderDebounceMS: 1,
			PollIntervalMS:    1,
			RequirePi:         true,
		},
		MQTT: mqttConfig{
			ClientID: "remotecontrol",
			Topic:    "remotecontrol",
		},
		TickMS: 50,
	}
}

func (c *appConfig) load(path string) error {
	log.Printf("loading config file: %s\n", path)
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not open config file: %v", err)
	}
	if err = yaml.UnmarshalStrict(yamlFile, c); err != nil {
		return fmt.Errorf("could not parse config file: %v", err)
	}
	return nil
}

func parseRange(name string, v []int) (local.Range, error) {
	if len(v) != 3 {
		return local.Range{}, fmt.Errorf("%s must be [step, min, max], got %v", name, v)
	}
	r := local.Range{Step: v[0], Min: v[1], Max: v[2]}
	if err := r.Validate(); err != nil {
		return local.Range{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return r, nil
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// remoteConfig turns the file settings into facade options. onPi tells
// whether local controls may be used when they require a Pi.
func (c *appConfig) remoteConfig(onPi bool) (remote.Config, error) {
	cfg := remote.Config{
		Serial:  c.Serial.Enabled,
		Network: c.Network.Enabled,
		Local:   c.Local.Enabled,
	}

	if cfg.Serial {
		opts := comm.DefaultOptions()
		switch c.Serial.Driver {
		case "", "tarm":
			opts.Opener = comm.OpenTarm
		case "bugst":
			opts.Opener = comm.OpenBugst
		default:
			return cfg, fmt.Errorf("unknown serial driver %q", c.Serial.Driver)
		}
		opts.Baud = c.Serial.Baud
		opts.ReadTimeout = millis(c.Serial.ReadTimeoutMS)
		opts.Ports = c.Serial.Ports
		cfg.SerialOptions = opts
	}

	cfg.NetworkOptions = netremote.Options{Port: c.Network.Port}

	if cfg.Local && c.Local.RequirePi && !onPi {
		log.Println("local controls need a Raspberry Pi, not using them")
		cfg.Local = false
	}
	if cfg.Local {
		profile, err := local.ParseProfile(c.Local.Profile)
		if err != nil {
			return cfg, err
		}
		intensity, err := parseRange("intensity_range", c.Local.IntensityRange)
		if err != nil {
			return cfg, err
		}
		payload, err := parseRange("payload_range", c.Local.PayloadRange)
		if err != nil {
			return cfg, err
		}
		cfg.LocalOptions = local.Options{
			Profile:         profile,
			Intensity:       intensity,
			Payload:         payload,
			ButtonDebounce:  millis(c.Local.ButtonDebounceMS),
			EncoderDebounce: millis(c.Local.EncoderDebounceMS),
			PollInterval:    millis(c.Local.PollIntervalMS),
		}
	}
	return cfg, nil
}
