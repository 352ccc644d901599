package monitor

import (
	"fmt"
	"strings"

	"pingmon/config"
)

// SelectSnapshot reduces the latest snapshots of all running monitors
// to a single representative one according to strategy. hosts supplies
// the configured order for the first-host strategy. It reports false
// when there are no snapshots at all.
//
// Ties are broken arbitrarily; map iteration order supplies the
// arbitrariness. NaN currents compare as equal and so never displace a
// candidate.
func SelectSnapshot(strategy string, hosts []config.HostConfig, latest map[string]Stats) (Stats, bool) {
	if len(latest) == 0 {
		return Stats{}, false
	}

	switch strategy {
	case config.StrategyMean:
		var sum float64
		for _, s := range latest {
			sum += s.Current
		}
		synthetic := anySnapshot(latest)
		synthetic.Current = sum / float64(len(latest))
		synthetic.Labels = []string{"AVG"}
		return synthetic, true

	case config.StrategyWorst:
		picked := anySnapshot(latest)
		for _, s := range latest {
			if s.Current > picked.Current {
				picked = s
			}
		}
		return picked, true

	case config.StrategyFastest:
		picked := anySnapshot(latest)
		for _, s := range latest {
			if s.Current < picked.Current {
				picked = s
			}
		}
		return picked, true

	default: // "first" and anything unrecognized
		if len(hosts) > 0 {
			if s, ok := latest[hosts[0].ID]; ok {
				return s, true
			}
		}
		return anySnapshot(latest), true
	}
}

// anySnapshot returns an arbitrary element of latest, which must be
// non-empty.
func anySnapshot(latest map[string]Stats) Stats {
	for _, s := range latest {
		return s
	}
	return Stats{}
}

// FormatDisplay renders a snapshot as compact display text: the
// current latency in whole (truncated) milliseconds, then the active
// labels, each part controlled by its flag. With both parts absent it
// falls back to "Running".
func FormatDisplay(s Stats, showLatency, showLabels bool) string {
	parts := make([]string, 0, 1+len(s.Labels))
	if showLatency {
		parts = append(parts, fmt.Sprintf("%dms", uint64(s.Current)))
	}
	if showLabels {
		parts = append(parts, s.Labels...)
	}
	if len(parts) == 0 {
		return "Running"
	}
	return strings.Join(parts, " ")
}
