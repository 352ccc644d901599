package monitor

import (
	"reflect"
	"testing"

	"pingmon/config"
)

func TestEvaluateRules(t *testing.T) {
	rules := []config.DisplayRule{
		{Condition: config.ConditionLess, Threshold: 50, Label: "P2P", Enabled: true},
		{Condition: config.ConditionGreater, Threshold: 50, Label: "FWD", Enabled: true},
	}

	tests := []struct {
		name    string
		latency float64
		want    []string
	}{
		{"below threshold", 30, []string{"P2P"}},
		{"above threshold", 70, []string{"FWD"}},
		{"exactly the threshold matches nothing", 50, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateRules(rules, tt.latency)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("EvaluateRules(%v) = %v, want %v", tt.latency, got, tt.want)
			}
		})
	}
}

func TestEvaluateRulesDisabled(t *testing.T) {
	rules := []config.DisplayRule{
		{Condition: config.ConditionLess, Threshold: 50, Label: "P2P", Enabled: false},
	}
	if got := EvaluateRules(rules, 30); len(got) != 0 {
		t.Errorf("expected disabled rules to be skipped, got %v", got)
	}
}

func TestEvaluateRulesOrderAndStacking(t *testing.T) {
	rules := []config.DisplayRule{
		{Condition: config.ConditionLess, Threshold: 100, Label: "A", Enabled: true},
		{Condition: config.ConditionLess, Threshold: 50, Label: "B", Enabled: true},
		{Condition: config.ConditionGreater, Threshold: 10, Label: "C", Enabled: true},
		{Condition: config.ConditionGreater, Threshold: 10, Label: "C", Enabled: true},
	}

	want := []string{"A", "B", "C", "C"}
	if got := EvaluateRules(rules, 30); !reflect.DeepEqual(got, want) {
		t.Errorf("expected matches in rule order without dedup, got %v", got)
	}
}

func TestEvaluateRulesEmpty(t *testing.T) {
	if got := EvaluateRules(nil, 30); len(got) != 0 {
		t.Errorf("expected no labels without rules, got %v", got)
	}
}
