// Package metrics exposes ip4defrag and tcpassembly health counters as
// Prometheus metrics, served by internal/httpapi's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "netlayers"
	subsystem = "assembly"
)

// Label names.
const (
	labelReason = "reason" // overflow, timeout
)

// -------------------------------------------------------------------------
// Collector — Prometheus ip4defrag/tcpassembly Metrics
// -------------------------------------------------------------------------

// Collector holds all reassembly and stream-following Prometheus metrics.
//
//   - Gauges track currently buffered datagrams/streams.
//   - Counters track completed reassembly/teardown events.
//   - Drop counters are labeled by reason for alerting.
type Collector struct {
	// FragmentedDatagrams tracks in-progress IPv4 reassembly entries.
	FragmentedDatagrams prometheus.Gauge

	// DatagramsReassembled counts datagrams ip4defrag.Reassembler has
	// successfully spliced back together.
	DatagramsReassembled prometheus.Counter

	// DatagramsDropped counts datagrams dropped by ip4defrag.Reassembler,
	// labeled by the drop reason (overflow, timeout).
	DatagramsDropped *prometheus.CounterVec

	// ActiveStreams tracks currently tracked TCP streams in tcpassembly.Follower.
	ActiveStreams prometheus.Gauge

	// StreamsStarted counts streams tcpassembly.Follower has begun tracking.
	StreamsStarted prometheus.Counter

	// StreamsTerminated counts streams removed from tcpassembly.Follower,
	// labeled by termination reason (closed, reset, timeout, overflow).
	StreamsTerminated *prometheus.CounterVec

	// BufferedBytes tracks the total out-of-order bytes currently buffered
	// across all tracked streams.
	BufferedBytes prometheus.Gauge
}

// NewCollector creates a Collector with all metrics registered against the
// provided prometheus.Registerer. If reg is nil, prometheus.DefaultRegisterer
// is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.FragmentedDatagrams,
		c.DatagramsReassembled,
		c.DatagramsDropped,
		c.ActiveStreams,
		c.StreamsStarted,
		c.StreamsTerminated,
		c.BufferedBytes,
	)

	return c
}

// newMetrics creates all Prometheus metrics without registering them.
func newMetrics() *Collector {
	return &Collector{
		FragmentedDatagrams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fragmented_datagrams",
			Help:      "Number of in-progress IPv4 datagrams buffered by the reassembler.",
		}),

		DatagramsReassembled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "datagrams_reassembled_total",
			Help:      "Total IPv4 datagrams successfully reassembled.",
		}),

		DatagramsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "datagrams_dropped_total",
			Help:      "Total IPv4 datagrams dropped by the reassembler, labeled by reason.",
		}, []string{labelReason}),

		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_streams",
			Help:      "Number of TCP streams currently tracked by the stream follower.",
		}),

		StreamsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "streams_started_total",
			Help:      "Total TCP streams the follower began tracking.",
		}),

		StreamsTerminated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "streams_terminated_total",
			Help:      "Total TCP streams removed from the follower, labeled by termination reason.",
		}, []string{labelReason}),

		BufferedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "buffered_bytes",
			Help:      "Total out-of-order bytes currently buffered across all tracked streams.",
		}),
	}
}

// -------------------------------------------------------------------------
// Reassembler hooks
// -------------------------------------------------------------------------

// RecordReassembled increments the reassembled-datagrams counter and
// decrements the in-progress gauge. Called by the caller after a
// Reassembled Result.
func (c *Collector) RecordReassembled() {
	c.DatagramsReassembled.Inc()
	c.FragmentedDatagrams.Dec()
}

// RecordFragmentStarted increments the in-progress datagram gauge. Called
// when ip4defrag.Process begins tracking a new, previously-unseen datagram.
func (c *Collector) RecordFragmentStarted() {
	c.FragmentedDatagrams.Inc()
}

// RecordDatagramDropped increments the dropped-datagram counter for the
// given reason ("overflow" or "timeout") and decrements the in-progress
// gauge. Wired directly as an ip4defrag.Config.OnOverflow/OnTimeout callback.
func (c *Collector) RecordDatagramDropped(reason string) {
	c.DatagramsDropped.WithLabelValues(reason).Inc()
	c.FragmentedDatagrams.Dec()
}

// -------------------------------------------------------------------------
// Stream follower hooks
// -------------------------------------------------------------------------

// RecordStreamStarted increments the streams-started counter and the
// active-streams gauge. Wired as a tcpassembly.Follower.OnNewStream callback.
func (c *Collector) RecordStreamStarted() {
	c.StreamsStarted.Inc()
	c.ActiveStreams.Inc()
}

// RecordStreamTerminated increments the streams-terminated counter for the
// given reason and decrements the active-streams gauge. Wired as a
// tcpassembly.Follower.OnTerminate callback.
func (c *Collector) RecordStreamTerminated(reason string) {
	c.StreamsTerminated.WithLabelValues(reason).Inc()
	c.ActiveStreams.Dec()
}

// SetBufferedBytes sets the total buffered out-of-order byte gauge to the
// given value.
func (c *Collector) SetBufferedBytes(n int) {
	c.BufferedBytes.Set(float64(n))
}
