package config

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	yaml "gopkg.in/yaml.v2"
)

// Strategy names understood by the display selector.
const (
	StrategyMean    = "mean"
	StrategyWorst   = "worst"
	StrategyFastest = "fastest"
	StrategyFirst   = "first"
)

// Rule conditions.
const (
	ConditionLess    = "less"
	ConditionGreater = "greater"
)

// Config represents configuration for the daemon
type Config struct {
	Hosts []HostConfig `yaml:"hosts"`

	Ping struct {
		Interval      duration `yaml:"interval"`
		PeakThreshold duration `yaml:"peak-threshold"`
	} `yaml:"ping"`

	Display struct {
		Strategy    string `yaml:"strategy"`
		ShowLatency bool   `yaml:"show-latency"`
		ShowLabels  bool   `yaml:"show-labels"`
	} `yaml:"display"`

	Log struct {
		Directory string `yaml:"directory"`
	} `yaml:"log"`

	DNS struct {
		Nameserver string `yaml:"nameserver"`
	} `yaml:"dns"`
}

type duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler interface.
func (d *duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = duration(dur)
	return nil
}

// Duration is a convenience getter.
func (d duration) Duration() time.Duration {
	return time.Duration(d)
}

// Set updates the underlying duration.
func (d *duration) Set(dur time.Duration) {
	*d = duration(dur)
}

// FromYAML reads YAML from reader and unmarshals it to Config
func FromYAML(r io.Reader) (*Config, error) {
	c := &Config{}
	c.Display.ShowLatency = true
	c.Display.ShowLabels = true
	err := yaml.NewDecoder(r).Decode(c)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns the configuration used when no config file exists: a
// single well-known public resolver with the stock display rules. Timing
// fields are left zero so flag values can still take effect; callers run
// SetDefaults afterwards.
func Default() *Config {
	c := &Config{
		Hosts: []HostConfig{{
			ID:      uuid.NewString(),
			Name:    "Google DNS",
			Address: "8.8.8.8",
			Rules: []DisplayRule{
				{ID: uuid.NewString(), Condition: ConditionLess, Threshold: 50, Label: "P2P", Enabled: true},
				{ID: uuid.NewString(), Condition: ConditionGreater, Threshold: 50, Label: "FWD", Enabled: true},
			},
		}},
	}
	c.Display.ShowLatency = true
	c.Display.ShowLabels = true
	return c
}

// SetDefaults fills fields that were left empty and rewrites host ids
// to their canonical form.
func (c *Config) SetDefaults() {
	if c.Ping.Interval.Duration() == 0 {
		c.Ping.Interval.Set(5 * time.Second)
	}
	if c.Ping.PeakThreshold.Duration() == 0 {
		c.Ping.PeakThreshold.Set(200 * time.Millisecond)
	}
	if c.Display.Strategy == "" {
		c.Display.Strategy = StrategyFirst
	}
	if c.Log.Directory == "" {
		c.Log.Directory = "logs"
	}
	for i := range c.Hosts {
		if c.Hosts[i].ID == "" {
			c.Hosts[i].ID = uuid.NewString()
		} else if id, err := uuid.Parse(c.Hosts[i].ID); err == nil {
			// Snapshot caches and selection join on the canonical
			// lowercase form; invalid ids are left for Validate.
			c.Hosts[i].ID = id.String()
		}
		if c.Hosts[i].Name == "" {
			c.Hosts[i].Name = c.Hosts[i].Address
		}
	}
}

// Validate checks the constraints YAML decoding cannot express. Call
// after SetDefaults so generated host ids are covered too.
func (c *Config) Validate() error {
	seen := make(map[uuid.UUID]struct{}, len(c.Hosts))
	for _, h := range c.Hosts {
		if h.Address == "" {
			return fmt.Errorf("host %q: address missing", h.Name)
		}
		id, err := uuid.Parse(h.ID)
		if err != nil {
			return fmt.Errorf("host %q: invalid id %q: %w", h.Name, h.ID, err)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("host %q: duplicate id %q", h.Name, h.ID)
		}
		seen[id] = struct{}{}
		for _, r := range h.Rules {
			if r.Condition != ConditionLess && r.Condition != ConditionGreater {
				return fmt.Errorf("host %q: unknown rule condition %q", h.Name, r.Condition)
			}
		}
	}
	switch c.Display.Strategy {
	case StrategyMean, StrategyWorst, StrategyFastest, StrategyFirst:
	default:
		return fmt.Errorf("unknown display strategy %q", c.Display.Strategy)
	}
	return nil
}
