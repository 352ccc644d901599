package monitor

import (
	"math"
	"sort"
	"time"

	"pingmon/config"
)

// Status classifies a host by how many peaks occurred within the last
// minute.
type Status string

// Status values, ordered from healthy to unusable. Initializing is
// only ever seen before the first sample arrives.
const (
	StatusInitializing Status = "Initializing"
	StatusGood         Status = "Good"
	StatusModerate     Status = "Moderate"
	StatusBad          Status = "Bad"
	StatusUnusable     Status = "Unusable"
)

// classifyStatus maps a peaks-in-last-minute count onto a Status. The
// breakpoints are fixed.
func classifyStatus(peaks int) Status {
	switch {
	case peaks <= 2:
		return StatusGood
	case peaks <= 5:
		return StatusModerate
	case peaks <= 10:
		return StatusBad
	default:
		return StatusUnusable
	}
}

// Stats is the full derived state for one host at one point in time.
// A snapshot is immutable once published; every new sample produces a
// complete replacement.
type Stats struct {
	HostID string `json:"hostId"`

	// Current is the newest sample's latency, or 0 after a failed
	// probe. A consumer cannot tell 0 apart from "no data" without
	// also looking at Status.
	Current float64 `json:"current"`

	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"` // jitter
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`

	TotalPings      uint64 `json:"totalPings"`
	SuccessfulPings uint64 `json:"successfulPings"`
	FailedPings     uint64 `json:"failedPings"`

	PacketLossRate float64 `json:"packetLossRate"`
	SuccessRate    float64 `json:"successRate"`

	// Synthetic accounting assuming a fixed 64-byte probe payload.
	BytesSent     uint64 `json:"bytesSent"`
	BytesReceived uint64 `json:"bytesReceived"`

	PeaksCount     uint64     `json:"peaksCount"`
	PeaksPerMinute float64    `json:"peaksPerMinute"`
	PeaksMean      float64    `json:"peaksMean"`
	PeaksMax       float64    `json:"peaksMax"`
	LastPeak       *time.Time `json:"lastPeak"`

	Status    Status    `json:"status"`
	Labels    []string  `json:"labels"`
	StartTime time.Time `json:"startTime"`
}

// newStats returns the snapshot a monitor carries before its first
// sample.
func newStats(hostID string, start time.Time) Stats {
	return Stats{
		HostID:    hostID,
		Status:    StatusInitializing,
		Labels:    []string{},
		StartTime: start,
	}
}

// computeStats derives a fresh snapshot from the full sample history.
// samples must be non-empty and its last element must be the newly
// ingested sample; prev supplies the fields that carry forward
// (host id, start time, sticky last peak).
func computeStats(prev Stats, samples []Sample, rules []config.DisplayRule) Stats {
	newest := samples[len(samples)-1]
	now := newest.Timestamp

	total := len(samples)
	successLatencies := make([]float64, 0, total)
	for _, s := range samples {
		if s.Success {
			successLatencies = append(successLatencies, s.Latency)
		}
	}
	successful := len(successLatencies)
	failed := total - successful

	var successRate, lossRate float64
	if total > 0 {
		successRate = float64(successful) / float64(total) * 100
		lossRate = float64(failed) / float64(total) * 100
	}

	var mean, stdDev, med, min, max float64
	if successful > 0 {
		var sum float64
		for _, l := range successLatencies {
			sum += l
		}
		mean = sum / float64(successful)

		var variance float64
		for _, l := range successLatencies {
			diff := mean - l
			variance += diff * diff
		}
		stdDev = math.Sqrt(variance / float64(successful))

		med = median(successLatencies)
		min = successLatencies[0]
		max = successLatencies[successful-1]
	}

	var peaks, peaksInLastMinute int
	var peaksSum, peaksMax float64
	for _, s := range samples {
		if !s.IsPeak {
			continue
		}
		peaks++
		peaksSum += s.Latency
		if s.Latency > peaksMax {
			peaksMax = s.Latency
		}
		if now.Sub(s.Timestamp) < time.Minute {
			peaksInLastMinute++
		}
	}
	var peaksMean float64
	if peaks > 0 {
		peaksMean = peaksSum / float64(peaks)
	}

	lastPeak := prev.LastPeak
	if newest.IsPeak {
		lastPeak = &now
	}

	var current float64
	if newest.Success {
		current = newest.Latency
	}

	return Stats{
		HostID:          prev.HostID,
		Current:         current,
		Mean:            mean,
		StdDev:          stdDev,
		Median:          med,
		Min:             min,
		Max:             max,
		TotalPings:      uint64(total),
		SuccessfulPings: uint64(successful),
		FailedPings:     uint64(failed),
		PacketLossRate:  lossRate,
		SuccessRate:     successRate,
		BytesSent:       uint64(total) * 64,
		BytesReceived:   uint64(successful) * 64,
		PeaksCount:      uint64(peaks),
		PeaksPerMinute:  float64(peaksInLastMinute),
		PeaksMean:       peaksMean,
		PeaksMax:        peaksMax,
		LastPeak:        lastPeak,
		Status:          classifyStatus(peaksInLastMinute),
		Labels:          EvaluateRules(rules, newest.Latency),
		StartTime:       prev.StartTime,
	}
}

// median sorts values in place and returns the element at index len/2.
// Callers guarantee values is non-empty.
func median(values []float64) float64 {
	sort.Float64s(values)
	return values[len(values)/2]
}
