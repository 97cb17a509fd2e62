package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records ingestion counters on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	parsedLines      *prometheus.CounterVec
	malformedStreams prometheus.Counter
	discardedGroups  *prometheus.CounterVec
	results          *prometheus.CounterVec
	failedServers    prometheus.Counter
	bandwidthMean    *prometheus.GaugeVec
	intervalMbps     prometheus.Histogram
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,

		parsedLines: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fbiperf_parsed_lines_total",
			Help: "Lines or intervals read from raw output by format and outcome",
		}, []string{"format", "outcome"}),

		malformedStreams: factory.NewCounter(prometheus.CounterOpts{
			Name: "fbiperf_malformed_streams_total",
			Help: "Structured outputs that could not be decoded",
		}),

		discardedGroups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fbiperf_discarded_groups_total",
			Help: "Connection groups dropped for too few samples",
		}, []string{"direction"}),

		results: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fbiperf_results_total",
			Help: "Test results produced",
		}, []string{"direction"}),

		failedServers: factory.NewCounter(prometheus.CounterOpts{
			Name: "fbiperf_failed_servers_total",
			Help: "Servers whose output was missing or unusable",
		}),

		bandwidthMean: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fbiperf_bandwidth_mean_mbps",
			Help: "Mean windowed bandwidth per server and direction",
		}, []string{"server", "direction"}),

		intervalMbps: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fbiperf_interval_bandwidth_mbps",
			Help:    "Windowed per-interval bandwidth",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

// ObserveParse adds accepted and skipped counts for one parsed output.
func (m *Metrics) ObserveParse(format string, accepted int, skipped map[string]int) {
	if m == nil {
		return
	}
	if accepted > 0 {
		m.parsedLines.WithLabelValues(format, "accepted").Add(float64(accepted))
	}
	for reason, n := range skipped {
		m.parsedLines.WithLabelValues(format, reason).Add(float64(n))
	}
}

func (m *Metrics) IncMalformed() {
	if m == nil {
		return
	}
	m.malformedStreams.Inc()
}

func (m *Metrics) IncDiscarded(direction string) {
	if m == nil {
		return
	}
	m.discardedGroups.WithLabelValues(direction).Inc()
}

func (m *Metrics) IncFailedServer() {
	if m == nil {
		return
	}
	m.failedServers.Inc()
}

// ObserveResult records one emitted result and its bandwidth series.
func (m *Metrics) ObserveResult(server, direction string, mean float64, values []float64) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(direction).Inc()
	m.bandwidthMean.WithLabelValues(server, direction).Set(mean)
	for _, v := range values {
		m.intervalMbps.Observe(v)
	}
}

// WriteTextfile writes the registry in text exposition format for the node
// exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
