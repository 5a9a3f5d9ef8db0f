package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 进度同步指标
	SyncWriteCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_sync_writes_total",
			Help: "Durable progress writes by outcome (ok/stale/failed)",
		},
		[]string{"outcome"},
	)

	SyncPendingGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "progress_sync_pending_writes",
			Help: "Progress vectors waiting for durable flush",
		},
	)

	SyncRetryCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "progress_sync_retries_total",
			Help: "Retries of durable progress writes",
		},
	)

	// 订阅会话指标
	SessionGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "progress_subscriber_sessions",
			Help: "Connected progress subscription sessions",
		},
	)

	PushCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_pushes_total",
			Help: "Progress vectors pushed to subscribers",
		},
		[]string{"direction"},
	)

	CredentialLookupCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_lookups_total",
			Help: "Credential registry lookups by outcome (hit/resolved/failed)",
		},
		[]string{"outcome"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(SyncWriteCounter)
	prometheus.MustRegister(SyncPendingGauge)
	prometheus.MustRegister(SyncRetryCounter)
	prometheus.MustRegister(SessionGauge)
	prometheus.MustRegister(PushCounter)
	prometheus.MustRegister(CredentialLookupCounter)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
