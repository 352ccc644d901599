package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParseConfig(t *testing.T) {
	f, err := os.Open("testdata/config_test.yml")
	if err != nil {
		t.Error("failed to open file", err)
		t.FailNow()
	}

	c, err := FromYAML(f)
	f.Close()
	if err != nil {
		t.Error("failed to parse", err)
		t.FailNow()
	}

	hosts := []HostConfig{
		{
			ID:      "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
			Name:    "Google DNS",
			Address: "8.8.8.8",
			Rules: []DisplayRule{
				{Condition: "less", Threshold: 50, Label: "P2P", Enabled: true},
				{Condition: "greater", Threshold: 50, Label: "FWD", Enabled: true},
			},
		},
		{
			ID:      "6ba7b811-9dad-11d1-80b4-00c04fd430c8",
			Name:    "Cloudflare",
			Address: "1.1.1.1",
			Rules: []DisplayRule{
				{Condition: "greater", Threshold: 120, Label: "SLOW", Enabled: false},
			},
		},
		{Address: "192.0.2.10"},
	}

	if !reflect.DeepEqual(hosts, c.Hosts) {
		t.Errorf("expected hosts %+v but got %+v", hosts, c.Hosts)
		t.FailNow()
	}

	if expected := 2 * time.Second; c.Ping.Interval.Duration() != expected {
		t.Errorf("expected ping.interval to be %v, got %v", expected, c.Ping.Interval.Duration())
	}
	if expected := 150 * time.Millisecond; c.Ping.PeakThreshold.Duration() != expected {
		t.Errorf("expected ping.peak-threshold to be %v, got %v", expected, c.Ping.PeakThreshold.Duration())
	}

	if expected := "worst"; c.Display.Strategy != expected {
		t.Errorf("expected display.strategy to be %q, got %q", expected, c.Display.Strategy)
	}
	if !c.Display.ShowLatency {
		t.Error("expected display.show-latency to default to true")
	}
	if c.Display.ShowLabels {
		t.Error("expected display.show-labels to be false")
	}

	if expected := "/var/log/pingmon"; c.Log.Directory != expected {
		t.Errorf("expected log.directory to be %q, got %q", expected, c.Log.Directory)
	}
	if expected := "1.1.1.1"; c.DNS.Nameserver != expected {
		t.Errorf("expected dns.nameserver to be %q, got %q", expected, c.DNS.Nameserver)
	}
}

func TestSetDefaults(t *testing.T) {
	c := &Config{Hosts: []HostConfig{{Address: "192.0.2.10"}}}
	c.SetDefaults()

	if expected := 5 * time.Second; c.Ping.Interval.Duration() != expected {
		t.Errorf("expected default interval %v, got %v", expected, c.Ping.Interval.Duration())
	}
	if expected := 200 * time.Millisecond; c.Ping.PeakThreshold.Duration() != expected {
		t.Errorf("expected default peak threshold %v, got %v", expected, c.Ping.PeakThreshold.Duration())
	}
	if expected := StrategyFirst; c.Display.Strategy != expected {
		t.Errorf("expected default strategy %q, got %q", expected, c.Display.Strategy)
	}
	if expected := "logs"; c.Log.Directory != expected {
		t.Errorf("expected default log directory %q, got %q", expected, c.Log.Directory)
	}

	h := c.Hosts[0]
	if h.ID == "" {
		t.Error("expected a generated host id")
	}
	if h.Name != h.Address {
		t.Errorf("expected name to fall back to address, got %q", h.Name)
	}

	if err := c.Validate(); err != nil {
		t.Errorf("expected defaulted config to validate, got %v", err)
	}
}

func TestSetDefaultsCanonicalizesHostIDs(t *testing.T) {
	c := &Config{Hosts: []HostConfig{
		{ID: "3D8C9FC4-42F5-4404-935F-2DD04B442686", Address: "192.0.2.10"},
		{ID: "not-a-uuid", Address: "192.0.2.11"},
	}}
	c.SetDefaults()

	if expected := "3d8c9fc4-42f5-4404-935f-2dd04b442686"; c.Hosts[0].ID != expected {
		t.Errorf("expected canonical id %q, got %q", expected, c.Hosts[0].ID)
	}
	if c.Hosts[1].ID != "not-a-uuid" {
		t.Errorf("expected invalid id to be left for Validate, got %q", c.Hosts[1].ID)
	}
}

func TestDefault(t *testing.T) {
	c := Default()

	if len(c.Hosts) != 1 || c.Hosts[0].Address != "8.8.8.8" {
		t.Fatalf("expected a single 8.8.8.8 host, got %+v", c.Hosts)
	}
	if len(c.Hosts[0].Rules) != 2 {
		t.Fatalf("expected two stock rules, got %+v", c.Hosts[0].Rules)
	}
	if c.Ping.Interval != 0 {
		t.Errorf("expected timings to stay zero for flag merging, got %v", c.Ping.Interval.Duration())
	}

	c.SetDefaults()
	if err := c.Validate(); err != nil {
		t.Errorf("expected default config to validate, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing address", func(c *Config) { c.Hosts[0].Address = "" }, "address missing"},
		{"bad id", func(c *Config) { c.Hosts[0].ID = "not-a-uuid" }, "invalid id"},
		{"duplicate id", func(c *Config) { c.Hosts = append(c.Hosts, c.Hosts[0]) }, "duplicate id"},
		{"mixed-case duplicate id", func(c *Config) {
			dup := c.Hosts[0]
			dup.ID = strings.ToUpper(dup.ID)
			c.Hosts = append(c.Hosts, dup)
		}, "duplicate id"},
		{"bad condition", func(c *Config) { c.Hosts[0].Rules[0].Condition = "between" }, "unknown rule condition"},
		{"bad strategy", func(c *Config) { c.Display.Strategy = "median" }, "unknown display strategy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			c.SetDefaults()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
