package config

// HostConfig describes one probe target and the rules used to label
// its snapshots.
type HostConfig struct {
	ID      string        `yaml:"id"`
	Name    string        `yaml:"name"`
	Address string        `yaml:"address"`
	Rules   []DisplayRule `yaml:"rules"`
}

// UnmarshalYAML implements yaml.Unmarshaler interface. A host entry is
// either a bare address string or a full mapping; SetDefaults fills in
// the id and name for the shorthand form.
func (h *HostConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		h.Address = s
		return nil
	}

	type plain HostConfig
	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}
	*h = HostConfig(p)

	return nil
}

// DisplayRule attaches a label to snapshots whose latency passes a
// threshold comparison.
type DisplayRule struct {
	ID        string  `yaml:"id,omitempty"`
	Condition string  `yaml:"condition"`
	Threshold float64 `yaml:"threshold"`
	Label     string  `yaml:"label"`
	Enabled   bool    `yaml:"enabled"`
}

// UnmarshalYAML implements yaml.Unmarshaler interface. Rules are
// enabled unless the config says otherwise.
func (r *DisplayRule) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain DisplayRule
	p := plain{Enabled: true}
	if err := unmarshal(&p); err != nil {
		return err
	}
	*r = DisplayRule(p)
	return nil
}
