package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wagate",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wagate",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wagate",
			Subsystem: "session",
			Name:      "active",
			Help:      "Live sessions currently held by the registry.",
		},
	)
	sessionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wagate",
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Lifecycle events emitted by sessions.",
		},
		[]string{"kind"},
	)
	engineSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wagate",
			Subsystem: "engine",
			Name:      "sends_total",
			Help:      "Message send attempts against the protocol engine.",
		},
		[]string{"kind", "success"},
	)
	engineSendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wagate",
			Subsystem: "engine",
			Name:      "send_duration_seconds",
			Help:      "Engine send call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			sessionsActive,
			sessionEvents,
			engineSends,
			engineSendDuration,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordSessionGauge(delta int) {
	RegisterMetrics()
	sessionsActive.Add(float64(delta))
}

func RecordSessionEvent(kind string) {
	RegisterMetrics()
	sessionEvents.WithLabelValues(kind).Inc()
}

func RecordEngineSend(kind string, duration time.Duration, success bool) {
	RegisterMetrics()
	successLabel := strconv.FormatBool(success)
	engineSends.WithLabelValues(kind, successLabel).Inc()
	engineSendDuration.WithLabelValues(kind, successLabel).Observe(duration.Seconds())
}
