package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quotestream"

var (
	once sync.Once

	// FramesReceived counts inbound websocket messages by frame kind (binary|text).
	FramesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "stream", Name: "frames_received_total",
		Help: "Messages received from the feed",
	}, []string{"kind"})

	// RecordsDecoded counts frames that produced a record, by packet type.
	RecordsDecoded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "decoder", Name: "records_total",
		Help: "Frames decoded into a record",
	}, []string{"packet_type"})

	// FramesDropped counts frames that produced no record, by reason.
	FramesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "decoder", Name: "frames_dropped_total",
		Help: "Frames that produced no record",
	}, []string{"reason"})

	// DecodeWarnings counts non fatal decode problems (bad zlib, schema fallback).
	DecodeWarnings = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "decoder", Name: "warnings_total",
		Help: "Decode warnings",
	})

	// DecodeLatency observes time spent in DecodeFrame.
	DecodeLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "decoder", Name: "decode_seconds",
		Help:    "Time to decode one frame (seconds)",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 8),
	})

	// Connects counts connection attempts by outcome (ok|unauthorized|forbidden|not_found|http|network).
	Connects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "stream", Name: "connects_total",
		Help: "Feed connection attempts",
	}, []string{"status"})

	// ReceiveTimeouts counts receive windows that expired with no message.
	ReceiveTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "stream", Name: "receive_timeouts_total",
		Help: "Receive windows with no data",
	})

	// ActiveSessions is the number of sessions not yet terminal.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "stream", Name: "active_sessions",
		Help: "Sessions currently running",
	})

	// SinkDrops counts events discarded because a subscriber or sink buffer was full.
	SinkDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "sink", Name: "drops_total",
		Help: "Events dropped because a buffer was full",
	}, []string{"sink"})

	// SinkPublishErrors counts events an external sink failed to publish.
	SinkPublishErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "sink", Name: "publish_errors_total",
		Help: "Events an external sink failed to deliver",
	}, []string{"sink"})

	// LogClients is the number of attached /logs websocket clients.
	LogClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "http", Name: "log_clients",
		Help: "Connected log stream clients",
	})

	// HTTPRequests counts bridge API requests by route, method and status.
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http", Name: "requests_total",
		Help: "Bridge HTTP requests",
	}, []string{"path", "method", "code"})

	// HTTPDuration observes bridge API latency.
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
		Help:    "Bridge HTTP request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method"})
)

// Register registers all collectors once. Without an argument the
// default registerer is used.
func Register(registerers ...prometheus.Registerer) {
	once.Do(func() {
		var reg prometheus.Registerer
		if len(registerers) > 0 && registerers[0] != nil {
			reg = registerers[0]
		} else {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			FramesReceived,
			RecordsDecoded,
			FramesDropped,
			DecodeWarnings,
			DecodeLatency,
			Connects,
			ReceiveTimeouts,
			ActiveSessions,
			SinkDrops,
			SinkPublishErrors,
			LogClients,
			HTTPRequests,
			HTTPDuration,
		)
	})
}
