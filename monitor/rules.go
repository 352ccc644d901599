package monitor

import "pingmon/config"

// EvaluateRules returns the labels of all enabled rules matching the
// given latency, in rule order. Labels are neither deduplicated nor
// sorted; overlapping rules are allowed to stack. Timed-out probes are
// evaluated with the timeout sentinel latency.
func EvaluateRules(rules []config.DisplayRule, latency float64) []string {
	labels := make([]string, 0, len(rules))
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		match := false
		switch r.Condition {
		case config.ConditionLess:
			match = latency < r.Threshold
		case config.ConditionGreater:
			match = latency > r.Threshold
		}
		if match {
			labels = append(labels, r.Label)
		}
	}
	return labels
}
