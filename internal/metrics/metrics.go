// Package metrics provides Prometheus metrics for ring and duplex
// lifecycle events. Grounded on marmos91-dittofs's internal/adapter/nsm
// Metrics type: every method follows the nil-receiver pattern so a
// *Set can be passed around and called freely even when the caller
// chose not to register it with any Prometheus registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set is the metric collection shared by every Reader, Writer and
// duplex channel in a process.
type Set struct {
	FramesWritten      prometheus.Counter
	FramesRead         prometheus.Counter
	WrapMarkersPlaced  prometheus.Counter
	PeerDeathDetected  *prometheus.CounterVec
	BytesFree          prometheus.Gauge
	DuplexRoundTrip    prometheus.Histogram
}

// New creates a Set. Pass a nil Registerer to build metrics without
// registration, which is also the zero-overhead choice for tests.
func New(reg prometheus.Registerer) *Set {
	s := &Set{
		FramesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zerobuffer_frames_written_total",
			Help: "Total frames written to a ring, excluding wrap markers.",
		}),
		FramesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zerobuffer_frames_read_total",
			Help: "Total frames read and released from a ring, excluding wrap markers.",
		}),
		WrapMarkersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zerobuffer_wrap_markers_total",
			Help: "Total wrap markers placed by a writer.",
		}),
		PeerDeathDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zerobuffer_peer_death_detected_total",
			Help: "Total peer-death detections by role (reader, writer).",
		}, []string{"role"}),
		BytesFree: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zerobuffer_payload_free_bytes",
			Help: "Last observed payload_free_bytes of a ring.",
		}),
		DuplexRoundTrip: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zerobuffer_duplex_round_trip_seconds",
			Help:    "Client-observed request/response round trip latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			s.FramesWritten,
			s.FramesRead,
			s.WrapMarkersPlaced,
			s.PeerDeathDetected,
			s.BytesFree,
			s.DuplexRoundTrip,
		)
	}
	return s
}

// IncFramesWritten records one committed frame. Safe to call on nil.
func (s *Set) IncFramesWritten() {
	if s == nil {
		return
	}
	s.FramesWritten.Inc()
}

// IncFramesRead records one released frame. Safe to call on nil.
func (s *Set) IncFramesRead() {
	if s == nil {
		return
	}
	s.FramesRead.Inc()
}

// IncWrapMarkers records one wrap marker placed. Safe to call on nil.
func (s *Set) IncWrapMarkers() {
	if s == nil {
		return
	}
	s.WrapMarkersPlaced.Inc()
}

// RecordPeerDeath records a peer-death detection for role ("reader" or
// "writer", naming which side observed its peer gone). Safe to call on
// nil.
func (s *Set) RecordPeerDeath(role string) {
	if s == nil {
		return
	}
	s.PeerDeathDetected.WithLabelValues(role).Inc()
}

// SetBytesFree records the last observed payload_free_bytes. Safe to
// call on nil.
func (s *Set) SetBytesFree(n uint64) {
	if s == nil {
		return
	}
	s.BytesFree.Set(float64(n))
}

// ObserveRoundTrip records a duplex request/response latency in
// seconds. Safe to call on nil.
func (s *Set) ObserveRoundTrip(seconds float64) {
	if s == nil {
		return
	}
	s.DuplexRoundTrip.Observe(seconds)
}
