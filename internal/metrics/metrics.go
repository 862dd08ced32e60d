// Package metrics provides Prometheus metrics for the instrument.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var defaultLatencyBuckets = []float64{2, 5, 10, 20, 35, 50, 75, 100, 200, 500}

// Manager owns the instrument's Prometheus metrics. A nil *Manager is valid
// and records nothing.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	framesProcessed    prometheus.Counter
	framesSkipped      prometheus.Counter
	framesDropped      prometheus.Counter
	detectionLatency   prometheus.Histogram
	handsDetected      prometheus.Gauge
	chordsTriggered    *prometheus.CounterVec
	poweredOn          prometheus.Gauge
	recordingsFinished *prometheus.CounterVec
	exportBytes        prometheus.Counter
	eventClients       prometheus.Gauge
	httpRequests       *prometheus.CounterVec
}

// NewManager creates a metrics manager on its own registry unless one is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "handchord",
		histogramBuckets: defaultLatencyBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.framesProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_processed_total",
		Help:      "Video frames run through hand detection",
	})
	m.framesSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_skipped_total",
		Help:      "Gesture ticks skipped because the detector was not ready",
	})
	m.framesDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_dropped_total",
		Help:      "Gesture ticks dropped because a detection was still in flight",
	})
	m.detectionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "detection_latency_milliseconds",
		Help:      "Hand detection latency per frame in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.handsDetected = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "hands_detected",
		Help:      "Hands found in the most recent frame",
	})
	m.chordsTriggered = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "chords_triggered_total",
		Help:      "Chords triggered, by root note",
	}, []string{"root"})
	m.poweredOn = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "powered_on",
		Help:      "1 while the instrument is running",
	})
	m.recordingsFinished = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recordings_finished_total",
		Help:      "Recordings exported, by format",
	}, []string{"format"})
	m.exportBytes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "export_bytes_total",
		Help:      "Bytes of encoded recordings exported",
	})
	m.eventClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "event_clients",
		Help:      "Connected event stream clients",
	})
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})
}

// Registry returns the registry the metrics live on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordFrame records one detection pass and the hands it found.
func (m *Manager) RecordFrame(latency time.Duration, hands int) {
	if m == nil {
		return
	}
	m.framesProcessed.Inc()
	m.detectionLatency.Observe(float64(latency) / float64(time.Millisecond))
	m.handsDetected.Set(float64(hands))
}

// RecordFrameSkipped records a tick without a ready detector.
func (m *Manager) RecordFrameSkipped() {
	if m == nil {
		return
	}
	m.framesSkipped.Inc()
}

// RecordFrameDropped records a tick lost while detection was busy.
func (m *Manager) RecordFrameDropped() {
	if m == nil {
		return
	}
	m.framesDropped.Inc()
}

// RecordChord records a triggered chord.
func (m *Manager) RecordChord(root string) {
	if m == nil {
		return
	}
	m.chordsTriggered.WithLabelValues(root).Inc()
}

// SetPowered tracks the power state.
func (m *Manager) SetPowered(on bool) {
	if m == nil {
		return
	}
	if on {
		m.poweredOn.Set(1)
	} else {
		m.poweredOn.Set(0)
	}
}

// RecordExport records a finished recording of size bytes.
func (m *Manager) RecordExport(format string, size int) {
	if m == nil {
		return
	}
	m.recordingsFinished.WithLabelValues(format).Inc()
	m.exportBytes.Add(float64(size))
}

// SetEventClients tracks connected event stream clients.
func (m *Manager) SetEventClients(n int) {
	if m == nil {
		return
	}
	m.eventClients.Set(float64(n))
}

// RecordHTTPRequest counts one served request.
func (m *Manager) RecordHTTPRequest(route, method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}
