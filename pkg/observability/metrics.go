package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Detection metrics
	detectionUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinela_detection_updates_total",
			Help: "Total number of detection updates from the inference service",
		},
		[]string{"outcome"},
	)

	detectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinela_detections_total",
			Help: "Total number of confirmed detections",
		},
	)

	// Summarization metrics
	summarizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinela_summarizations_total",
			Help: "Total number of log summarization calls",
		},
		[]string{"level", "status"},
	)

	summarizationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinela_summarization_duration_seconds",
			Help:    "Log summarization call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"level"},
	)

	// Email metrics
	emailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinela_emails_total",
			Help: "Total number of notification emails",
		},
		[]string{"kind", "status"},
	)

	// Frame metrics
	framesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinela_frames_sent_total",
			Help: "Total number of frames sent to the inference service",
		},
	)

	framesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinela_frames_dropped_total",
			Help: "Total number of frames dropped by rate limiting or backpressure",
		},
	)

	// Session metrics
	sessionPhase = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinela_session_phase",
			Help: "Current session phase (0=idle, 1=watching, 2=detected)",
		},
	)

	logEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinela_log_entries",
			Help: "Number of entries in the session log",
		},
	)

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			detectionUpdatesTotal,
			detectionsTotal,
			summarizationsTotal,
			summarizationDuration,
			emailsTotal,
			framesSentTotal,
			framesDroppedTotal,
			sessionPhase,
			logEntries,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordDetectionUpdate records a detection update outcome ("ok" or
// "invalid").
func RecordDetectionUpdate(outcome string) {
	detectionUpdatesTotal.WithLabelValues(outcome).Inc()
}

// RecordDetection records a confirmed detection.
func RecordDetection() {
	detectionsTotal.Inc()
}

// RecordSummarization records a summarization call
func RecordSummarization(level, status string, duration time.Duration) {
	summarizationsTotal.WithLabelValues(level, status).Inc()
	summarizationDuration.WithLabelValues(level).Observe(duration.Seconds())
}

// RecordEmail records a notification email attempt
func RecordEmail(kind, status string) {
	emailsTotal.WithLabelValues(kind, status).Inc()
}

// RecordFrameSent records a frame handed to the inference transport
func RecordFrameSent() {
	framesSentTotal.Inc()
}

// RecordFrameDropped records a frame dropped before sending
func RecordFrameDropped() {
	framesDroppedTotal.Inc()
}

// SetSessionPhase sets the session phase gauge
func SetSessionPhase(phase int) {
	sessionPhase.Set(float64(phase))
}

// SetLogEntries sets the log size gauge
func SetLogEntries(count int) {
	logEntries.Set(float64(count))
}
