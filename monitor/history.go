package monitor

import "time"

const (
	// historyCap bounds the number of retained samples per host.
	historyCap = 3600

	// peakWindow is how many of the most recent successful samples
	// feed the peak-detection baseline. Intentionally much smaller
	// than historyCap; the two windows serve different calculations.
	peakWindow = 60
)

// Sample is one probe outcome. Immutable once recorded.
type Sample struct {
	Timestamp time.Time
	Latency   float64 // milliseconds; timeoutLatency for timed-out probes
	Success   bool
	IsPeak    bool
}

// History is a bounded FIFO of samples for one host, oldest first. It
// is not safe for concurrent use; the owning Monitor serializes access.
type History struct {
	samples []Sample
}

// Add appends s, evicting the oldest sample when the cap is exceeded.
func (h *History) Add(s Sample) {
	h.samples = append(h.samples, s)
	if len(h.samples) > historyCap {
		h.samples = h.samples[1:]
	}
}

// Len returns the number of retained samples.
func (h *History) Len() int {
	return len(h.samples)
}

// peakBaseline returns the median latency of the up-to-peakWindow most
// recent successful samples, or fallback when there are none. Called
// before the new sample is added, so a first successful sample can
// never exceed its own baseline.
func (h *History) peakBaseline(fallback float64) float64 {
	latencies := make([]float64, 0, peakWindow)
	for i := len(h.samples) - 1; i >= 0 && len(latencies) < peakWindow; i-- {
		if h.samples[i].Success {
			latencies = append(latencies, h.samples[i].Latency)
		}
	}
	if len(latencies) == 0 {
		return fallback
	}
	return median(latencies)
}
