package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "console",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "console",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-IP rate limiter",
	})

	Polls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "console",
		Name:      "polls_total",
		Help:      "Dashboard poll ticks by task and result",
	}, []string{"task", "result"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "console",
		Name:      "notifications_total",
		Help:      "Notifications published to dashboard clients",
	}, []string{"type"})

	Exports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "console",
		Name:      "exports_total",
		Help:      "Attendance exports by format and result",
	}, []string{"format", "result"})

	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "console",
		Name:      "registrations_total",
		Help:      "Student registrations by result",
	}, []string{"result"})

	OrphanedImages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "console",
		Name:      "orphaned_images_total",
		Help:      "Uploaded photos left behind after a failed insert",
	})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "console",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
