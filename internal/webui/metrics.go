package webui

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics are the web UI's Prometheus instruments.
type metrics struct {
	sessions prometheus.Gauge
	frames   prometheus.Counter
	reloads  prometheus.Counter
	messages *prometheus.CounterVec
	frameOps prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "traceview",
			Subsystem: "webui",
			Name:      "sessions",
			Help:      "Open browser sessions.",
		}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traceview",
			Subsystem: "webui",
			Name:      "frames_total",
			Help:      "Frames rendered and sent to browsers.",
		}),
		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traceview",
			Subsystem: "webui",
			Name:      "reloads_total",
			Help:      "Times a session picked up new traces from the source.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traceview",
			Subsystem: "webui",
			Name:      "messages_total",
			Help:      "Client messages received, by type.",
		}, []string{"type"}),
		frameOps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "traceview",
			Subsystem: "webui",
			Name:      "frame_ops",
			Help:      "Draw operations per frame.",
			Buckets:   prometheus.ExponentialBuckets(16, 2, 10),
		}),
	}
	reg.MustRegister(m.sessions, m.frames, m.reloads, m.messages, m.frameOps)
	return m
}
