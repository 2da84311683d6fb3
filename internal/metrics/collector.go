package metrics

import "github.com/prometheus/client_golang/prometheus"

// InFlightStats provides the collector access to pipeline state.
type InFlightStats interface {
	TranscodesInFlight() int64
	UpstreamInFlight() int64
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	stats InFlightStats

	transcodes *prometheus.Desc
	upstream   *prometheus.Desc
}

// NewCollector creates a collector that reads in-flight counts at scrape time.
// stats may be nil (metrics will report 0).
func NewCollector(stats InFlightStats) *Collector {
	return &Collector{
		stats: stats,
		transcodes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "transcodes_in_flight"),
			"Current number of running audio normalizations.",
			nil, nil,
		),
		upstream: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "upstream_in_flight"),
			"Current number of outstanding upstream calls.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.transcodes
	ch <- c.upstream
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var transcodes, upstream float64
	if c.stats != nil {
		transcodes = float64(c.stats.TranscodesInFlight())
		upstream = float64(c.stats.UpstreamInFlight())
	}
	ch <- prometheus.MustNewConstMetric(c.transcodes, prometheus.GaugeValue, transcodes)
	ch <- prometheus.MustNewConstMetric(c.upstream, prometheus.GaugeValue, upstream)
}
