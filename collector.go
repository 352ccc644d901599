package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"pingmon/monitor"
)

const prefix = "pingmon_"

var (
	// Host names are not necessarily unique, ids are.
	labelNames      = []string{"host", "id"}
	latencyDesc     = prometheus.NewDesc(prefix+"latency_ms", "Latency statistics over the retained history in millis", append(labelNames, "type"), nil)
	lossDesc        = prometheus.NewDesc(prefix+"loss_percent", "Share of failed probes in percent", labelNames, nil)
	successDesc     = prometheus.NewDesc(prefix+"success_percent", "Share of successful probes in percent", labelNames, nil)
	pingsDesc       = prometheus.NewDesc(prefix+"pings", "Probes in the retained history by result", append(labelNames, "result"), nil)
	bytesDesc       = prometheus.NewDesc(prefix+"bytes", "Payload bytes attributed to the host by direction", append(labelNames, "direction"), nil)
	peaksDesc       = prometheus.NewDesc(prefix+"peaks", "Peak samples in the retained history", labelNames, nil)
	peaksMinuteDesc = prometheus.NewDesc(prefix+"peaks_per_minute", "Peak samples within the last minute", labelNames, nil)
	statusDesc      = prometheus.NewDesc(prefix+"status_info", "Connection quality classification, 1 for the active status", append(labelNames, "status"), nil)
	displayDesc     = prometheus.NewDesc(prefix+"display_latency_ms", "Latency of the snapshot selected by the display strategy", []string{"strategy"}, nil)
)

type pingCollector struct {
	registry *monitor.Registry
}

func (p *pingCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- latencyDesc
	ch <- lossDesc
	ch <- successDesc
	ch <- pingsDesc
	ch <- bytesDesc
	ch <- peaksDesc
	ch <- peaksMinuteDesc
	ch <- statusDesc
	ch <- displayDesc
}

func (p *pingCollector) Collect(ch chan<- prometheus.Metric) {
	cfg := p.registry.Config()

	names := make(map[string]string, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		names[h.ID] = h.Name
	}

	for id, s := range p.registry.Latest() {
		name, ok := names[id]
		if !ok {
			name = id
		}
		l := []string{name, id}

		ch <- prometheus.MustNewConstMetric(latencyDesc, prometheus.GaugeValue, s.Current, append(l, "current")...)
		ch <- prometheus.MustNewConstMetric(latencyDesc, prometheus.GaugeValue, s.Mean, append(l, "mean")...)
		ch <- prometheus.MustNewConstMetric(latencyDesc, prometheus.GaugeValue, s.Median, append(l, "median")...)
		ch <- prometheus.MustNewConstMetric(latencyDesc, prometheus.GaugeValue, s.Min, append(l, "min")...)
		ch <- prometheus.MustNewConstMetric(latencyDesc, prometheus.GaugeValue, s.Max, append(l, "max")...)
		ch <- prometheus.MustNewConstMetric(latencyDesc, prometheus.GaugeValue, s.StdDev, append(l, "std_dev")...)

		ch <- prometheus.MustNewConstMetric(lossDesc, prometheus.GaugeValue, s.PacketLossRate, l...)
		ch <- prometheus.MustNewConstMetric(successDesc, prometheus.GaugeValue, s.SuccessRate, l...)

		// History is a sliding window, so even the count-shaped values
		// can shrink on eviction or monitor restart; gauges throughout.
		ch <- prometheus.MustNewConstMetric(pingsDesc, prometheus.GaugeValue, float64(s.SuccessfulPings), append(l, "success")...)
		ch <- prometheus.MustNewConstMetric(pingsDesc, prometheus.GaugeValue, float64(s.FailedPings), append(l, "failed")...)

		ch <- prometheus.MustNewConstMetric(bytesDesc, prometheus.GaugeValue, float64(s.BytesSent), append(l, "sent")...)
		ch <- prometheus.MustNewConstMetric(bytesDesc, prometheus.GaugeValue, float64(s.BytesReceived), append(l, "received")...)

		ch <- prometheus.MustNewConstMetric(peaksDesc, prometheus.GaugeValue, float64(s.PeaksCount), l...)
		ch <- prometheus.MustNewConstMetric(peaksMinuteDesc, prometheus.GaugeValue, s.PeaksPerMinute, l...)

		ch <- prometheus.MustNewConstMetric(statusDesc, prometheus.GaugeValue, 1, append(l, string(s.Status))...)
	}

	if s, ok := p.registry.Select(); ok {
		ch <- prometheus.MustNewConstMetric(displayDesc, prometheus.GaugeValue, s.Current, cfg.Display.Strategy)
	}
}
