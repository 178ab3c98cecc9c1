package devserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the dev server's prometheus collectors. Each server owns its
// registry so tests can run several servers in one process.
type Metrics struct {
	registry *prometheus.Registry

	framesIn   *prometheus.CounterVec
	framesOut  *prometheus.CounterVec
	dropped    prometheus.Counter
	rooms      prometheus.Counter
	uploads    prometheus.Counter
	uploadSize prometheus.Histogram
}

// NewMetrics registers all collectors. clients reports the live connection count.
func NewMetrics(clients func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		framesIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shadow",
			Name:      "frames_received_total",
			Help:      "Websocket frames received, by event.",
		}, []string{"event"}),
		framesOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shadow",
			Name:      "frames_sent_total",
			Help:      "Websocket frames queued for delivery, by event.",
		}, []string{"event"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shadow",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped because a client was too slow.",
		}),
		rooms: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shadow",
			Name:      "rooms_created_total",
			Help:      "Rooms created through the REST API.",
		}),
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shadow",
			Name:      "uploads_total",
			Help:      "Images stored by the upload endpoint.",
		}),
		uploadSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shadow",
			Name:      "upload_bytes",
			Help:      "Size of uploaded images.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}
	reg.MustRegister(m.framesIn, m.framesOut, m.dropped, m.rooms, m.uploads, m.uploadSize)
	if clients != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "shadow",
			Name:      "connected_clients",
			Help:      "Open websocket connections.",
		}, clients))
	}
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) received(event string) {
	if m == nil {
		return
	}
	m.framesIn.WithLabelValues(event).Inc()
}

func (m *Metrics) sent(event string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.framesOut.WithLabelValues(event).Add(float64(n))
}

func (m *Metrics) drop(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.Add(float64(n))
}

func (m *Metrics) roomCreated() {
	if m == nil {
		return
	}
	m.rooms.Inc()
}

func (m *Metrics) uploaded(size int64) {
	if m == nil {
		return
	}
	m.uploads.Inc()
	m.uploadSize.Observe(float64(size))
}
